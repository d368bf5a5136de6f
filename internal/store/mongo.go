package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Sentinel errors returned by the Mongo-backed Store. Callers map these to
// the wire-level taxonomy in package apperr; the Store itself stays
// transport-agnostic.
var (
	ErrNotFound             = errors.New("store: not found")
	ErrAlreadyExists        = errors.New("store: already exists")
	ErrInsufficientCash     = errors.New("store: insufficient cash")
	ErrInsufficientHoldings = errors.New("store: insufficient holdings")
)

const (
	collInstruments = "instruments"
	collPortfolios  = "portfolios"
	collHoldings    = "holdings"
	collTrades      = "trades"
	collRoundState  = "round_state"
)

// MongoStore implements Store over a MongoDB database.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to MongoDB and returns a Store.
// The URI should include the database name (e.g. mongodb://localhost:27017/tradefloor).
// If no database is specified in the URI, "tradefloor" is used.
func Open(ctx context.Context, uri string) (*MongoStore, error) {
	clientOpts := options.Client().ApplyURI(uri)

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	dbName := "tradefloor"
	if u, err := url.Parse(uri); err == nil {
		if name := strings.TrimPrefix(u.Path, "/"); name != "" {
			dbName = name
		}
	}

	return &MongoStore{client: client, db: client.Database(dbName)}, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) {
	s.client.Disconnect(ctx)
}

// Migrate creates indexes for all collections.
func (s *MongoStore) Migrate(ctx context.Context) error {
	type idx struct {
		collection string
		model      mongo.IndexModel
	}

	indexes := []idx{
		{collInstruments, mongo.IndexModel{
			Keys:    bson.D{{Key: "symbol", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{collPortfolios, mongo.IndexModel{
			Keys:    bson.D{{Key: "team", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{collHoldings, mongo.IndexModel{
			Keys:    bson.D{{Key: "team", Value: 1}, {Key: "symbol", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{collTrades, mongo.IndexModel{
			Keys: bson.D{{Key: "team", Value: 1}, {Key: "executed_at", Value: -1}},
		}},
		{collRoundState, mongo.IndexModel{
			Keys:    bson.D{{Key: "singleton", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
	}

	for _, i := range indexes {
		if _, err := s.db.Collection(i.collection).Indexes().CreateOne(ctx, i.model); err != nil {
			return fmt.Errorf("create index on %s: %w", i.collection, err)
		}
	}
	return nil
}

// --- instruments ---

type instrumentDoc struct {
	Symbol        string    `bson:"symbol"`
	DisplayName   string    `bson:"display_name"`
	Price         float64   `bson:"price"`
	PreviousPrice float64   `bson:"previous_price"`
	UpdatedAt     time.Time `bson:"updated_at"`
	SortOrder     int64     `bson:"sort_order"`
}

func (d instrumentDoc) toInstrument() Instrument {
	return Instrument{
		Symbol:        d.Symbol,
		DisplayName:   d.DisplayName,
		Price:         d.Price,
		PreviousPrice: d.PreviousPrice,
		UpdatedAt:     d.UpdatedAt,
	}
}

// SeedInstruments inserts the fixed instrument table if absent. Existing
// instruments (e.g. after a restart) are left untouched.
func (s *MongoStore) SeedInstruments(ctx context.Context, seeds []Instrument) error {
	for i, seed := range seeds {
		doc := instrumentDoc{
			Symbol:        seed.Symbol,
			DisplayName:   seed.DisplayName,
			Price:         seed.Price,
			PreviousPrice: seed.Price,
			UpdatedAt:     time.Now(),
			SortOrder:     int64(i),
		}
		_, err := s.db.Collection(collInstruments).UpdateOne(ctx,
			bson.M{"symbol": seed.Symbol},
			bson.M{"$setOnInsert": doc},
			options.UpdateOne().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("seed instrument %s: %w", seed.Symbol, err)
		}
	}
	return nil
}

// ListInstruments returns all instruments in seed/insertion order.
func (s *MongoStore) ListInstruments(ctx context.Context) ([]Instrument, error) {
	cursor, err := s.db.Collection(collInstruments).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "sort_order", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []instrumentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode instruments: %w", err)
	}
	out := make([]Instrument, len(docs))
	for i, d := range docs {
		out[i] = d.toInstrument()
	}
	return out, nil
}

// GetInstrument returns a single instrument snapshot.
func (s *MongoStore) GetInstrument(ctx context.Context, symbol string) (Instrument, error) {
	var doc instrumentDoc
	err := s.db.Collection(collInstruments).FindOne(ctx, bson.M{"symbol": symbol}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Instrument{}, ErrNotFound
	}
	if err != nil {
		return Instrument{}, fmt.Errorf("get instrument %s: %w", symbol, err)
	}
	return doc.toInstrument(), nil
}

// UpsertPrice sets previous_price := price, price := newPrice, updated_at := now.
// Fails with ErrNotFound if the symbol is absent.
func (s *MongoStore) UpsertPrice(ctx context.Context, symbol string, newPrice float64, now time.Time) error {
	var current instrumentDoc
	err := s.db.Collection(collInstruments).FindOne(ctx, bson.M{"symbol": symbol}).Decode(&current)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read instrument %s: %w", symbol, err)
	}

	_, err = s.db.Collection(collInstruments).UpdateOne(ctx,
		bson.M{"symbol": symbol},
		bson.M{"$set": bson.M{
			"previous_price": current.Price,
			"price":          newPrice,
			"updated_at":     now,
		}},
	)
	if err != nil {
		return fmt.Errorf("upsert price %s: %w", symbol, err)
	}
	return nil
}

// --- portfolios & holdings ---

type portfolioDoc struct {
	Team        string    `bson:"team"`
	Cash        float64   `bson:"cash"`
	LastUpdated time.Time `bson:"last_updated"`
}

type holdingDoc struct {
	Team   string `bson:"team"`
	Symbol string `bson:"symbol"`
	Qty    int64  `bson:"qty"`
}

// CreatePortfolio registers a new team with the configured initial cash.
// Fails with ErrAlreadyExists if the team is present.
func (s *MongoStore) CreatePortfolio(ctx context.Context, team string, initialCash float64, now time.Time) error {
	_, err := s.db.Collection(collPortfolios).InsertOne(ctx, portfolioDoc{
		Team:        team,
		Cash:        initialCash,
		LastUpdated: now,
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create portfolio %s: %w", team, err)
	}
	return nil
}

func (s *MongoStore) holdingsFor(ctx context.Context, team string) (map[string]int64, error) {
	cursor, err := s.db.Collection(collHoldings).Find(ctx, bson.M{"team": team})
	if err != nil {
		return nil, fmt.Errorf("list holdings %s: %w", team, err)
	}
	defer cursor.Close(ctx)

	holdings := map[string]int64{}
	var docs []holdingDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode holdings %s: %w", team, err)
	}
	for _, d := range docs {
		if d.Qty > 0 {
			holdings[d.Symbol] = d.Qty
		}
	}
	return holdings, nil
}

// GetPortfolio returns a team's cash and pruned holdings.
func (s *MongoStore) GetPortfolio(ctx context.Context, team string) (Portfolio, error) {
	var doc portfolioDoc
	err := s.db.Collection(collPortfolios).FindOne(ctx, bson.M{"team": team}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Portfolio{}, ErrNotFound
	}
	if err != nil {
		return Portfolio{}, fmt.Errorf("get portfolio %s: %w", team, err)
	}

	holdings, err := s.holdingsFor(ctx, team)
	if err != nil {
		return Portfolio{}, err
	}
	return Portfolio{
		Team:        doc.Team,
		Cash:        doc.Cash,
		Holdings:    holdings,
		LastUpdated: doc.LastUpdated,
	}, nil
}

// ListPortfolios returns every portfolio, holdings included (leaderboard input).
func (s *MongoStore) ListPortfolios(ctx context.Context) ([]Portfolio, error) {
	cursor, err := s.db.Collection(collPortfolios).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list portfolios: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []portfolioDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode portfolios: %w", err)
	}

	holdingsCursor, err := s.db.Collection(collHoldings).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list all holdings: %w", err)
	}
	defer holdingsCursor.Close(ctx)

	byTeam := map[string]map[string]int64{}
	var holdingDocs []holdingDoc
	if err := holdingsCursor.All(ctx, &holdingDocs); err != nil {
		return nil, fmt.Errorf("decode all holdings: %w", err)
	}
	for _, h := range holdingDocs {
		if h.Qty <= 0 {
			continue
		}
		m, ok := byTeam[h.Team]
		if !ok {
			m = map[string]int64{}
			byTeam[h.Team] = m
		}
		m[h.Symbol] = h.Qty
	}

	out := make([]Portfolio, len(docs))
	for i, d := range docs {
		out[i] = Portfolio{
			Team:        d.Team,
			Cash:        d.Cash,
			Holdings:    byTeam[d.Team],
			LastUpdated: d.LastUpdated,
		}
	}
	return out, nil
}

// ApplyTrade executes a single buy (qty > 0) or sell (qty < 0), reading the
// instrument price inside the same transaction that validates and mutates
// cash/holdings, so the observed price and the balance check can never be
// torn apart by a concurrent trade.
func (s *MongoStore) ApplyTrade(ctx context.Context, team, symbol string, qty int64, now time.Time) (Portfolio, error) {
	session, err := s.client.StartSession()
	if err != nil {
		return Portfolio{}, fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc context.Context) (any, error) {
		var inst instrumentDoc
		if err := s.db.Collection(collInstruments).FindOne(sc, bson.M{"symbol": symbol}).Decode(&inst); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("read instrument %s: %w", symbol, err)
		}

		var pf portfolioDoc
		if err := s.db.Collection(collPortfolios).FindOne(sc, bson.M{"team": team}).Decode(&pf); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("read portfolio %s: %w", team, err)
		}

		price := inst.Price
		var newCash float64
		var newHoldingQty int64

		if qty > 0 {
			cost := price * float64(qty)
			if pf.Cash < cost {
				return nil, ErrInsufficientCash
			}
			newCash = pf.Cash - cost

			var h holdingDoc
			err := s.db.Collection(collHoldings).FindOne(sc, bson.M{"team": team, "symbol": symbol}).Decode(&h)
			if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
				return nil, fmt.Errorf("read holding %s/%s: %w", team, symbol, err)
			}
			newHoldingQty = h.Qty + qty

			_, err = s.db.Collection(collHoldings).UpdateOne(sc,
				bson.M{"team": team, "symbol": symbol},
				bson.M{"$set": bson.M{"team": team, "symbol": symbol, "qty": newHoldingQty}},
				options.UpdateOne().SetUpsert(true),
			)
			if err != nil {
				return nil, fmt.Errorf("upsert holding %s/%s: %w", team, symbol, err)
			}
		} else {
			absQty := -qty
			var h holdingDoc
			err := s.db.Collection(collHoldings).FindOne(sc, bson.M{"team": team, "symbol": symbol}).Decode(&h)
			if errors.Is(err, mongo.ErrNoDocuments) || h.Qty < absQty {
				return nil, ErrInsufficientHoldings
			}
			if err != nil {
				return nil, fmt.Errorf("read holding %s/%s: %w", team, symbol, err)
			}

			newCash = pf.Cash + price*float64(absQty)
			newHoldingQty = h.Qty - absQty

			if newHoldingQty == 0 {
				if _, err := s.db.Collection(collHoldings).DeleteOne(sc, bson.M{"team": team, "symbol": symbol}); err != nil {
					return nil, fmt.Errorf("delete holding %s/%s: %w", team, symbol, err)
				}
			} else {
				_, err = s.db.Collection(collHoldings).UpdateOne(sc,
					bson.M{"team": team, "symbol": symbol},
					bson.M{"$set": bson.M{"qty": newHoldingQty}},
				)
				if err != nil {
					return nil, fmt.Errorf("update holding %s/%s: %w", team, symbol, err)
				}
			}
		}

		if _, err := s.db.Collection(collPortfolios).UpdateOne(sc,
			bson.M{"team": team},
			bson.M{"$set": bson.M{"cash": newCash, "last_updated": now}},
		); err != nil {
			return nil, fmt.Errorf("update portfolio %s: %w", team, err)
		}

		side := Buy
		absQty := qty
		if qty < 0 {
			side = Sell
			absQty = -qty
		}
		trade := Trade{
			ID:         uuid.New().String(),
			Team:       team,
			Symbol:     symbol,
			Side:       side,
			Qty:        absQty,
			Price:      price,
			ExecutedAt: now,
		}
		if _, err := s.db.Collection(collTrades).InsertOne(sc, trade); err != nil {
			return nil, fmt.Errorf("insert trade: %w", err)
		}

		holdings, err := s.holdingsFor(sc, team)
		if err != nil {
			return nil, err
		}
		return Portfolio{Team: team, Cash: newCash, Holdings: holdings, LastUpdated: now}, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInsufficientCash) || errors.Is(err, ErrInsufficientHoldings) {
			return Portfolio{}, err
		}
		return Portfolio{}, fmt.Errorf("apply trade: %w", err)
	}
	return result.(Portfolio), nil
}

// --- trades ---

// ListTrades returns a team's execution history, newest first.
func (s *MongoStore) ListTrades(ctx context.Context, f TradeFilter) ([]Trade, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "executed_at", Value: -1}}).
		SetLimit(int64(f.Limit)).
		SetSkip(int64(f.Offset))

	cursor, err := s.db.Collection(collTrades).Find(ctx, bson.M{"team": f.Team}, opts)
	if err != nil {
		return nil, fmt.Errorf("list trades %s: %w", f.Team, err)
	}
	defer cursor.Close(ctx)

	trades := []Trade{}
	if err := cursor.All(ctx, &trades); err != nil {
		return nil, fmt.Errorf("decode trades %s: %w", f.Team, err)
	}
	return trades, nil
}

// PruneTrades deletes trades executed before the cutoff. Returns the count removed.
func (s *MongoStore) PruneTrades(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.Collection(collTrades).DeleteMany(ctx, bson.M{"executed_at": bson.M{"$lt": olderThan}})
	if err != nil {
		return 0, fmt.Errorf("prune trades: %w", err)
	}
	return result.DeletedCount, nil
}

// --- round state ---

type roundStateDoc struct {
	Singleton        int           `bson:"singleton"`
	Status           string        `bson:"status"`
	Deadline         time.Time     `bson:"deadline"`
	RemainingOnPause time.Duration `bson:"remaining_on_pause"`
}

// LoadRoundState restores the persisted round state, if any.
func (s *MongoStore) LoadRoundState(ctx context.Context) (RoundState, bool, error) {
	var doc roundStateDoc
	err := s.db.Collection(collRoundState).FindOne(ctx, bson.M{"singleton": 1}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return RoundState{}, false, nil
	}
	if err != nil {
		return RoundState{}, false, fmt.Errorf("load round state: %w", err)
	}
	return RoundState{
		Status:           doc.Status,
		Deadline:         doc.Deadline,
		RemainingOnPause: doc.RemainingOnPause,
	}, true, nil
}

// SaveRoundState persists the round state singleton.
func (s *MongoStore) SaveRoundState(ctx context.Context, rs RoundState) error {
	_, err := s.db.Collection(collRoundState).UpdateOne(ctx,
		bson.M{"singleton": 1},
		bson.M{"$set": roundStateDoc{
			Singleton:        1,
			Status:           rs.Status,
			Deadline:         rs.Deadline,
			RemainingOnPause: rs.RemainingOnPause,
		}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save round state: %w", err)
	}
	return nil
}
