package database

import (
	"context"
	"errors"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
)

// OpenInfluxConnection pools the connection to the analytics store
func OpenInfluxConnection(url string, token string) (influxdb2.Client, error) {
	client := influxdb2.NewClient(url, token)
	client.Options().SetPrecision(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ready, err := client.Ready(ctx)
	if err != nil {
		client.Close()
		return nil, err
	}
	if !ready {
		client.Close()
		return nil, errors.New("influxdb not ready")
	}

	return client, nil
}
