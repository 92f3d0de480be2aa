package models

// weights of the post ranking score
const (
	viewWeight  = 0.3
	likeWeight  = 2.0
	shareWeight = 1.5
)

// RankingScore is the popularity of a post, recomputed on every counter change before the post
// is persisted
func RankingScore(views int64, likes int64, shares int64) float64 {
	return float64(views)*viewWeight + float64(likes)*likeWeight + float64(shares)*shareWeight
}
