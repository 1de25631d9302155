package middleware

import (
	"context"
	"net/http"

	"github.com/vumotions/chatapp-server-sub000/backend/database"
	"github.com/vumotions/chatapp-server-sub000/backend/services"

	"github.com/gorilla/mux"
)

const eventsKey contextKey = "events"

// WithStore 將資料層注入每個請求的 context
func WithStore(store database.Store) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(database.NewContext(r.Context(), store)))
		})
	}
}

// WithEvents 將 socket 事件出口注入每個請求的 context
func WithEvents(events services.Events) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), eventsKey, events)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// EventsFromContext 取出事件出口，沒有注入時返回空實作，handler 不需要判空
func EventsFromContext(ctx context.Context) services.Events {
	if events, ok := ctx.Value(eventsKey).(services.Events); ok {
		return events
	}
	return services.NoopEvents{}
}
