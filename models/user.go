package models

import (
	"context"
	"errors"
	"time"

	"panda-blog/apperror"
	"panda-blog/helpers"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	DefaultAvatar = "https://images.unsplash.com/photo-1525385133512-2f3bdd039054?w=400&h=400&fit=crop"

	// every new user starts with one token
	signupTokens = 1
	// price of the premium upgrade
	PremiumCost = 50
)

// User is the "interface" used for client communication
type User struct {
	ID        primitive.ObjectID `json:"id" bson:"_id"`
	Username  string             `json:"username" bson:"username"`
	Email     string             `json:"email" bson:"email"`
	Password  string             `json:"-" bson:"password"` // hash value
	Avatar    string             `json:"avatar" bson:"avatar"`
	Bio       string             `json:"bio" bson:"bio"`
	Tokens    int64              `json:"tokens" bson:"tokens"`
	IsPremium bool               `json:"isPremium" bson:"isPremium"`
	Header    `bson:",inline"`
}

// UserInfo is the reduced user returned on registration
type UserInfo struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Avatar    string `json:"avatar"`
	Tokens    int64  `json:"tokens"`
	IsPremium bool   `json:"isPremium"`
}

// Info returns the reduced form
func (u *User) Info() UserInfo {
	return UserInfo{
		ID:        u.ID.Hex(),
		Username:  u.Username,
		Email:     u.Email,
		Avatar:    u.Avatar,
		Tokens:    u.Tokens,
		IsPremium: u.IsPremium,
	}
}

// ProfileChanges is a partial profile update
type ProfileChanges struct {
	Bio    *string `json:"bio" binding:"omitempty,max=500"`
	Avatar *string `json:"avatar" binding:"omitempty,url"`
}

// userStore holds the single-document operations the balance rules are built on
type userStore interface {
	load(ctx context.Context, id primitive.ObjectID) (*User, error)
	// debitPremium atomically debits cost and sets the flag if tokens >= cost, nil if not matched
	debitPremium(ctx context.Context, id primitive.ObjectID, cost int64) (*User, error)
}

// UserModel provides the logic to the interface and access to the database
type UserModel struct {
	Collection *mongo.Collection
	Log        *zap.Logger
}

func userID(id string) (primitive.ObjectID, error) {
	oid := helpers.ObjectID(id)
	if oid.IsZero() {
		return oid, apperror.NotFound("User")
	}
	return oid, nil
}

func (m UserModel) load(ctx context.Context, id primitive.ObjectID) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var user User
	err := m.Collection.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("User")
		}
		return nil, helpers.WrapError(err, helpers.FuncName())
	}
	return &user, nil
}

// update runs a FindOneAndUpdate and returns the changed document
func (m UserModel) update(ctx context.Context, filter bson.D, fields bson.D) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user User
	err := m.Collection.FindOneAndUpdate(ctx, filter, fields, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, helpers.WrapError(err, helpers.FuncName())
	}
	return &user, nil
}

func (m UserModel) debitPremium(ctx context.Context, id primitive.ObjectID, cost int64) (*User, error) {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "tokens", Value: bson.D{{Key: "$gte", Value: cost}}},
	}
	fields := bson.D{
		{Key: "$inc", Value: bson.D{{Key: "tokens", Value: -cost}, {Key: "recVer", Value: 1}}},
		{Key: "$set", Value: bson.D{{Key: "isPremium", Value: true}, {Key: "updatedAt", Value: time.Now()}}},
	}
	return m.update(ctx, filter, fields)
}

// userExists checks if the user name or the e-mail address is taken
func (m UserModel) userExists(ctx context.Context, username string, email string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "email", Value: email}},
		bson.D{{Key: "username", Value: username}},
	}}}

	cnt, err := m.Collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, helpers.WrapError(err, helpers.FuncName())
	}
	return cnt > 0, nil
}

// CreateUser registers a new user with a hashed password
func (m UserModel) CreateUser(ctx context.Context, username string, email string, password string) (*User, error) {
	taken, err := m.userExists(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperror.ErrDuplicateUser
	}

	hash, err := helpers.GenerateHash(password)
	if err != nil {
		return nil, helpers.WrapError(err, helpers.FuncName())
	}

	user := &User{
		ID:       primitive.NewObjectID(),
		Username: username,
		Email:    email,
		Password: hash,
		Avatar:   DefaultAvatar,
		Tokens:   signupTokens,
	}
	user.touch(time.Now())

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err = m.Collection.InsertOne(ctx, user); err != nil {
		// lost the race against a concurrent registration
		if helpers.IsDuplicateKey(err) {
			return nil, apperror.ErrDuplicateUser
		}
		return nil, helpers.WrapError(err, helpers.FuncName())
	}

	m.Log.Info("user registered", zap.String("userId", user.ID.Hex()))
	return user, nil
}

// Login checks the credentials, an unknown e-mail and a wrong password are not told apart
func (m UserModel) Login(ctx context.Context, email string, password string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var user User
	err := m.Collection.FindOne(ctx, bson.D{{Key: "email", Value: email}}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.ErrInvalidLogin
		}
		return nil, helpers.WrapError(err, helpers.FuncName())
	}

	if !helpers.CompareHash(user.Password, password) {
		return nil, apperror.ErrInvalidLogin
	}
	return &user, nil
}

// GetUser reads a user by id
func (m UserModel) GetUser(ctx context.Context, id string) (*User, error) {
	oid, err := userID(id)
	if err != nil {
		return nil, err
	}
	return m.load(ctx, oid)
}

// GetUserName returns the user name of a user id
func (m UserModel) GetUserName(ctx context.Context, id string) (string, error) {
	user, err := m.GetUser(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

// UpdateProfile changes bio and avatar of the caller's own profile
func (m UserModel) UpdateProfile(ctx context.Context, id string, callerID string, changes ProfileChanges) (*User, error) {
	if id != callerID {
		return nil, apperror.Forbidden("You can only update your own profile")
	}
	oid, err := userID(id)
	if err != nil {
		return nil, err
	}

	set := bson.D{{Key: "updatedAt", Value: time.Now()}}
	if changes.Bio != nil {
		set = append(set, bson.E{Key: "bio", Value: *changes.Bio})
	}
	if changes.Avatar != nil {
		set = append(set, bson.E{Key: "avatar", Value: *changes.Avatar})
	}

	fields := bson.D{
		{Key: "$set", Value: set},
		{Key: "$inc", Value: bson.D{{Key: "recVer", Value: 1}}},
	}

	user, err := m.update(ctx, bson.D{{Key: "_id", Value: oid}}, fields)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFound("User")
	}
	return user, nil
}

// AddTokens credits amount tokens
func (m UserModel) AddTokens(ctx context.Context, id string, amount int64) (*User, error) {
	if amount <= 0 {
		return nil, apperror.Validation("amount", "Invalid token amount")
	}
	oid, err := userID(id)
	if err != nil {
		return nil, err
	}

	fields := bson.D{
		{Key: "$inc", Value: bson.D{{Key: "tokens", Value: amount}, {Key: "recVer", Value: 1}}},
		{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: time.Now()}}},
	}

	user, err := m.update(ctx, bson.D{{Key: "_id", Value: oid}}, fields)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFound("User")
	}
	return user, nil
}

// UpgradePremium debits PremiumCost tokens and sets the premium flag in one conditional write
func (m UserModel) UpgradePremium(ctx context.Context, id string) (*User, error) {
	oid, err := userID(id)
	if err != nil {
		return nil, err
	}
	return upgradePremium(ctx, m, oid)
}

func upgradePremium(ctx context.Context, store userStore, id primitive.ObjectID) (*User, error) {
	user, err := store.debitPremium(ctx, id, PremiumCost)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	// no match: either the user is gone or the balance is too low
	current, err := store.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, &apperror.BalanceError{Required: PremiumCost, Available: current.Tokens}
}

// ListUsers returns all users in insertion order (leaderboard input)
func (m UserModel) ListUsers(ctx context.Context) ([]User, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.D{{Key: "password", Value: 0}})

	cursor, err := m.Collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, helpers.WrapError(err, helpers.FuncName())
	}
	defer cursor.Close(ctx)

	users := []User{}
	if err = cursor.All(ctx, &users); err != nil {
		return nil, helpers.WrapError(err, helpers.FuncName())
	}
	return users, nil
}
