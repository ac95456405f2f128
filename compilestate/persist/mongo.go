// Package persist provides durable storage for CompileState across
// driver restarts, so a REPL session survives a process restart. It is
// purely additive: the in-memory CompileState in the parent package
// remains the one spec.md's invariants are checked against, and callers
// that never configure a Store keep working exactly as before.
package persist

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"goa.design/federator/ast"
	"goa.design/federator/compilestate"
)

// Store persists CompileState snapshots keyed by session id.
type Store interface {
	Save(ctx context.Context, sessionID string, state *compilestate.CompileState) error
	Load(ctx context.Context, sessionID string) (*compilestate.CompileState, error)
	Delete(ctx context.Context, sessionID string) error
}

// MongoStore implements Store against a MongoDB collection, one document
// per session, keyed by session id.
type MongoStore struct {
	coll *mongo.Collection
}

// record is the on-disk document shape.
type record struct {
	SessionID string                   `bson:"_id"`
	Offset    int                      `bson:"offset"`
	Table     compilestate.TableState  `bson:"table"`
	Bodies    map[string]bson.Raw      `bson:"bodies"`
	UpdatedAt time.Time                `bson:"updated_at"`
}

// NewMongoStore wraps an existing *mongo.Client/database/collection
// triple. The caller owns the client's lifecycle (connect/disconnect).
func NewMongoStore(client *mongo.Client, database, collection string) *MongoStore {
	return &MongoStore{coll: client.Database(database).Collection(collection)}
}

// Save upserts the session's CompileState.
func (s *MongoStore) Save(ctx context.Context, sessionID string, state *compilestate.CompileState) error {
	bodies := make(map[string]bson.Raw, len(state.Bodies))
	for fn, edges := range state.Bodies {
		raw, err := bson.Marshal(bson.M{"edges": edges})
		if err != nil {
			return err
		}
		bodies[fn] = raw
	}
	doc := record{
		SessionID: sessionID,
		Offset:    state.Offset,
		Table:     state.Table,
		Bodies:    bodies,
		UpdatedAt: time.Now().UTC(),
	}
	opts := options.Replace().SetUpsert(true)
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": sessionID}, doc, opts)
	return err
}

// Load fetches a previously-saved CompileState, returning (nil, nil) if
// no session with that id has been persisted.
func (s *MongoStore) Load(ctx context.Context, sessionID string) (*compilestate.CompileState, error) {
	var doc record
	err := s.coll.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	bodies := make(map[string][]ast.Edge, len(doc.Bodies))
	for fn, raw := range doc.Bodies {
		var body struct {
			Edges []ast.Edge `bson:"edges"`
		}
		if err := bson.Unmarshal(raw, &body); err != nil {
			return nil, err
		}
		bodies[fn] = body.Edges
	}

	return &compilestate.CompileState{
		Offset: doc.Offset,
		Table:  doc.Table,
		Bodies: bodies,
		Data:   compilestate.NewDataState(),
	}, nil
}

// Delete removes a persisted session.
func (s *MongoStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": sessionID})
	return err
}
