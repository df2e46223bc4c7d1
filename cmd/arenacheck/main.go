// Command arenacheck smoke-checks a running arena server: health endpoint, lobby socket, ping.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/park285/cheese-arena/pkg/arenadto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func main() {
	baseURL := os.Getenv("ARENA_BASE_URL")
	userID := os.Getenv("ARENA_USER_ID")
	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	if baseURL == "" {
		logger.Fatal("ARENA_BASE_URL is required")
	}
	if userID == "" {
		userID = "arenacheck"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := check(ctx, baseURL, userID, logger); err != nil {
		logger.Fatal("check_failed", zap.Error(err))
	}
	logger.Info("check_ok")
}

func check(ctx context.Context, baseURL, userID string, logger *zap.Logger) error {
	base := strings.TrimRight(baseURL, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthz: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthz: status %d", resp.StatusCode)
	}
	logger.Info("healthz_ok")

	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/ws/chess/"
	c, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"X-User-Id": []string{userID}},
	})
	if err != nil {
		return fmt.Errorf("ws dial: %w", err)
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	if err := expect(ctx, c, arenadto.InfoConnected, logger); err != nil {
		return err
	}
	if err := expect(ctx, c, arenadto.InfoLobby, logger); err != nil {
		return err
	}
	if err := wsjson.Write(ctx, c, arenadto.Action{Action: arenadto.ActionPing}); err != nil {
		return fmt.Errorf("ws write: %w", err)
	}
	return expect(ctx, c, arenadto.InfoPong, logger)
}

func expect(ctx context.Context, c *websocket.Conn, info string, logger *zap.Logger) error {
	var ev arenadto.Event
	if err := wsjson.Read(ctx, c, &ev); err != nil {
		return fmt.Errorf("ws read: %w", err)
	}
	if ev.Message.Info != info {
		if ev.Message.Error != "" {
			return errors.New(ev.Message.Error)
		}
		return fmt.Errorf("expected %q, got %q", info, ev.Message.Info)
	}
	logger.Info("ws_event", zap.String("info", ev.Message.Info), zap.Int("games", len(ev.Games)))
	return nil
}
