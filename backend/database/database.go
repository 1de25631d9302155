package database

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store 是資料層的統一入口，controllers 透過 request context 取得
type Store interface {
	Collection(name string) *mongo.Collection
	Conversations() ConversationStore
	Disconnect(ctx context.Context) error
}

// MongoStore 是 Store 的 MongoDB 實作
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore 連線到 MongoDB 並返回 Store
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// 檢查連線
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	log.Println("Successfully connected to MongoDB!")
	return &MongoStore{client: client, db: client.Database(dbName)}, nil
}

// Collection 返回一個集合的實例
func (s *MongoStore) Collection(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// Conversations 返回會話存取層
func (s *MongoStore) Conversations() ConversationStore {
	return &mongoConversationStore{coll: s.db.Collection("conversations")}
}

// Disconnect 斷開與 MongoDB 的連線
func (s *MongoStore) Disconnect(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// contextKey 是一個自訂類型，用於在 context 中安全地儲存鍵值，避免衝突
type contextKey string

const storeKey contextKey = "store"

// NewContext 將 Store 放入 context
func NewContext(ctx context.Context, store Store) context.Context {
	return context.WithValue(ctx, storeKey, store)
}

// StoreFromContext 從 context 取出 Store
func StoreFromContext(ctx context.Context) (Store, bool) {
	store, ok := ctx.Value(storeKey).(Store)
	return store, ok
}
