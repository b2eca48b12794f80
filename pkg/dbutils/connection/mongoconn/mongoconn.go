// Package mongoconn implements the Connection contract (spec §4.3) for
// MongoDB.
package mongoconn

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dbutils-go/broker/pkg/dbutils/config"
	"github.com/dbutils-go/broker/pkg/dbutils/connection"
	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
)

// Connection is the MongoDB implementation of connection.Connection.
// Mirrors the teacher's MongoConnection{ConnectionStringSource, DB,
// Connected} shape, extended with the session/transaction state spec
// §4.3 requires.
type Connection struct {
	connection.Base

	client        *mongo.Client
	session       mongo.Session
	replicaSet    bool
	replicaProbed bool
}

// New constructs an unconnected mongoconn.Connection for cfg.
func New(cfg config.ConnectionConfig) *Connection {
	return &Connection{Base: connection.NewBase(cfg)}
}

// NewWithClient wraps an already-connected *mongo.Client. Used by tests
// against mtest or a local mongod.
func NewWithClient(cfg config.ConnectionConfig, client *mongo.Client) *Connection {
	c := New(cfg)
	c.client = client
	c.SetState(connection.StateConnected)

	return c
}

func (c *Connection) databaseName() string {
	if c.Cfg.Database != "" {
		return c.Cfg.Database
	}

	return "default"
}

func (c *Connection) db() *mongo.Database {
	return c.client.Database(c.databaseName())
}

// Connect is idempotent.
func (c *Connection) Connect(ctx context.Context) error {
	if c.client != nil {
		return nil
	}

	clientOpts := options.Client().ApplyURI(c.Cfg.URI)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return dberr.Connection(c.Cfg.Name, "opening mongo connection", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return dberr.Connection(c.Cfg.Name, "pinging mongo connection", err)
	}

	c.client = client
	c.SetState(connection.StateConnected)

	return nil
}

// Disconnect rolls back an active session first, then disconnects the
// client. Never errors on an already-closed handle.
func (c *Connection) Disconnect(ctx context.Context) error {
	if c.InTransaction() && c.session != nil {
		_ = c.session.AbortTransaction(ctx)
		c.session.EndSession(ctx)
		c.session = nil
		c.SetTransactionActive(false)
		c.ResetSavepoints()
	}

	if c.client == nil {
		c.SetState(connection.StateDisconnected)
		return nil
	}

	err := c.client.Disconnect(ctx)
	c.client = nil
	c.SetState(connection.StateDisconnected)

	if err != nil {
		return dberr.Connection(c.Cfg.Name, "closing mongo connection", err)
	}

	return nil
}

func (c *Connection) IsConnected() bool {
	return c.client != nil && c.State() == connection.StateConnected
}

func (c *Connection) CheckHealth(ctx context.Context) error {
	if c.client == nil {
		return dberr.Connection(c.Cfg.Name, "not connected", nil)
	}

	if err := c.client.Ping(ctx, nil); err != nil {
		return dberr.Connection(c.Cfg.Name, "health probe failed", err)
	}

	return nil
}

// probeReplicaSet calls hello/isMaster once per connection to determine
// whether transactions are available (spec §4.5: "absent a replica set,
// begin_transaction fails with Transaction").
func (c *Connection) probeReplicaSet(ctx context.Context) {
	if c.replicaProbed {
		return
	}

	c.replicaProbed = true

	var result bson.M
	if err := c.client.Database("admin").RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&result); err != nil {
		c.replicaSet = false
		return
	}

	setName, _ := result["setName"].(string)
	c.replicaSet = setName != ""
}

// BeginTransaction starts a session-backed transaction. Mongo sessions do
// not support nested transactions, so a second call while one is active
// maps to a Transaction error rather than a real savepoint.
func (c *Connection) BeginTransaction(ctx context.Context) (string, error) {
	if c.client == nil {
		return "", dberr.Connection(c.Cfg.Name, "not connected", nil)
	}

	c.probeReplicaSet(ctx)

	if c.InTransaction() {
		return "", dberr.Transaction("mongo sessions do not support nested transactions or savepoints", nil)
	}

	if !c.replicaSet {
		return "", dberr.Transaction("transactions require a replica set deployment", nil)
	}

	session, err := c.client.StartSession()
	if err != nil {
		return "", dberr.Transaction("starting session failed", err)
	}

	if err := session.StartTransaction(); err != nil {
		session.EndSession(ctx)
		return "", dberr.Transaction("starting transaction failed", err)
	}

	c.session = session
	c.SetTransactionActive(true)

	return "", nil
}

func (c *Connection) Commit(ctx context.Context) error {
	if !c.InTransaction() || c.session == nil {
		return dberr.Transaction("no active transaction to commit", nil)
	}

	err := c.session.CommitTransaction(ctx)
	c.session.EndSession(ctx)
	c.session = nil
	c.SetTransactionActive(false)
	c.ResetSavepoints()

	if err != nil {
		return dberr.Transaction("commit failed", err)
	}

	return nil
}

func (c *Connection) Rollback(ctx context.Context, savepoint string) error {
	if savepoint != "" {
		return dberr.Transaction("mongo does not support partial rollback to a savepoint", nil)
	}

	if !c.InTransaction() || c.session == nil {
		return dberr.Transaction("no active transaction to roll back", nil)
	}

	err := c.session.AbortTransaction(ctx)
	c.session.EndSession(ctx)
	c.session = nil
	c.SetTransactionActive(false)
	c.ResetSavepoints()

	if err != nil {
		return dberr.Transaction("rollback failed", err)
	}

	return nil
}

func (c *Connection) ReleaseSavepoint(ctx context.Context, name string) error {
	return dberr.NotImplemented("mongo has no savepoint concept to release")
}

// Execute dispatches a DocumentQuery per spec §4.3/§4.5.
func (c *Connection) Execute(ctx context.Context, q connection.Query) (any, error) {
	dq, ok := q.(connection.DocumentQuery)
	if !ok {
		return nil, dberr.Query("", "mongoconn received a non-document query", nil)
	}

	coll := c.db().Collection(dq.Collection)

	filter := filterOf(dq.Params)

	switch dq.Operation {
	case connection.DocFind:
		return c.find(ctx, coll, filter, dq.Params)
	case connection.DocFindOne:
		return c.findOne(ctx, coll, filter)
	case connection.DocAggregate:
		return c.aggregate(ctx, coll, dq.Params)
	case connection.DocCount:
		n, err := coll.CountDocuments(ctx, filter)
		if err != nil {
			return nil, dberr.Query(dq.Collection, "count failed", err)
		}

		return map[string]any{"count": n}, nil
	case connection.DocDistinct:
		field, _ := dq.Params["field"].(string)

		values, err := coll.Distinct(ctx, field, filter)
		if err != nil {
			return nil, dberr.Query(dq.Collection, "distinct failed", err)
		}

		return map[string]any{"values": values}, nil
	case connection.DocInsertOne:
		doc, _ := dq.Params["document"].(map[string]any)

		res, err := coll.InsertOne(ctx, doc)
		if err != nil {
			return nil, translateWriteError(err)
		}

		return map[string]any{"inserted_id": res.InsertedID}, nil
	case connection.DocInsertMany:
		docs, _ := dq.Params["documents"].([]any)

		res, err := coll.InsertMany(ctx, docs)
		if err != nil {
			return nil, translateWriteError(err)
		}

		return map[string]any{"inserted_ids": res.InsertedIDs}, nil
	case connection.DocUpdateOne, connection.DocUpdateMany:
		return c.update(ctx, coll, dq)
	case connection.DocDeleteOne:
		n, err := coll.DeleteOne(ctx, filter)
		if err != nil {
			return nil, translateWriteError(err)
		}

		return map[string]any{"deleted": n.DeletedCount}, nil
	case connection.DocDeleteMany:
		n, err := coll.DeleteMany(ctx, filter)
		if err != nil {
			return nil, translateWriteError(err)
		}

		return map[string]any{"deleted": n.DeletedCount}, nil
	default:
		return nil, dberr.Connection(c.Cfg.Name, fmt.Sprintf("unknown document operation %q", dq.Operation), nil)
	}
}

func filterOf(params map[string]any) bson.M {
	if filter, ok := params["filter"].(map[string]any); ok {
		return bson.M(filter)
	}

	return bson.M{}
}

func (c *Connection) find(ctx context.Context, coll *mongo.Collection, filter bson.M, params map[string]any) (any, error) {
	opts := options.Find()
	if limit, ok := params["limit"].(int64); ok {
		opts.SetLimit(limit)
	}

	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, dberr.Query(coll.Name(), "find failed", err)
	}
	defer cur.Close(ctx)

	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, dberr.Query(coll.Name(), "decoding find results", err)
	}

	return docs, nil
}

func (c *Connection) findOne(ctx context.Context, coll *mongo.Collection, filter bson.M) (any, error) {
	var doc bson.M

	err := coll.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, dberr.ResourceNotFound(coll.Name(), "no matching document")
	}

	if err != nil {
		return nil, dberr.Query(coll.Name(), "find_one failed", err)
	}

	return doc, nil
}

func (c *Connection) aggregate(ctx context.Context, coll *mongo.Collection, params map[string]any) (any, error) {
	pipeline, _ := params["pipeline"].([]any)

	cur, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, dberr.Query(coll.Name(), "aggregate failed", err)
	}
	defer cur.Close(ctx)

	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, dberr.Query(coll.Name(), "decoding aggregate results", err)
	}

	return docs, nil
}

// update wraps a plain field-map as {$set: …} unless the caller already
// supplied an operator-keyed map, mirroring the query builder's rule
// (spec §4.6) at the execution boundary too, defensively.
func (c *Connection) update(ctx context.Context, coll *mongo.Collection, dq connection.DocumentQuery) (any, error) {
	filter := filterOf(dq.Params)

	update, _ := dq.Params["update"].(map[string]any)
	if !hasOperatorKeys(update) {
		update = map[string]any{"$set": update}
	}

	if dq.Operation == connection.DocUpdateOne {
		res, err := coll.UpdateOne(ctx, filter, update)
		if err != nil {
			return nil, translateWriteError(err)
		}

		return map[string]any{"matched": res.MatchedCount, "modified": res.ModifiedCount, "upserted_id": res.UpsertedID}, nil
	}

	res, err := coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return nil, translateWriteError(err)
	}

	return map[string]any{"matched": res.MatchedCount, "modified": res.ModifiedCount, "upserted_id": res.UpsertedID}, nil
}

func hasOperatorKeys(m map[string]any) bool {
	for k := range m {
		if len(k) > 0 && k[0] == '$' {
			return true
		}
	}

	return false
}

func translateWriteError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return dberr.DuplicateKey(err.Error(), err)
	}

	return dberr.Database("mongo write failed", err)
}

// Client exposes the underlying *mongo.Client for the document adapter's
// collStats/hello calls, which need raw access beyond the abstract Query
// variants.
func (c *Connection) Client() *mongo.Client { return c.client }

// DatabaseName exposes the resolved database name.
func (c *Connection) DatabaseName() string { return c.databaseName() }
