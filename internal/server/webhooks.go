package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"slipline/internal/config"
	"slipline/internal/domain"
	"slipline/internal/engine"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// notificationDispatcher forwards rows of the notification log to the
// webhooks configured in slipline.yml. Delivery cursors persist in the
// webhook_cursors table keyed by URL, so a restart resumes where the last
// process stopped.
type notificationDispatcher struct {
	engine   engine.Engine
	webhooks []config.Webhook
	client   *http.Client
}

func startNotificationDispatcher(ctx context.Context, e engine.Engine) {
	if e.Config == nil || len(e.Config.Notifications.Webhooks) == 0 {
		return
	}
	d := &notificationDispatcher{
		engine:   e,
		webhooks: e.Config.Notifications.Webhooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
	}
	go d.run(ctx)
}

func (d *notificationDispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(defaultWebhookInterval)
	defer ticker.Stop()
	for {
		d.dispatchAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *notificationDispatcher) dispatchAll(ctx context.Context) {
	for _, hook := range d.webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.dispatchWebhook(ctx, hook)
	}
}

func (d *notificationDispatcher) dispatchWebhook(ctx context.Context, hook config.Webhook) {
	cursor, err := d.engine.Repo.GetWebhookCursor(ctx, hook.URL)
	if err != nil {
		log.Printf("webhook: load cursor failed: %v", err)
		return
	}
	items, err := d.engine.Repo.NotificationsAfter(ctx, cursor, defaultWebhookBatch)
	if err != nil {
		log.Printf("webhook: fetch notifications failed: %v", err)
		return
	}
	if len(items) == 0 {
		return
	}
	filter := newTypeFilter(hook.Types)
	for _, n := range items {
		if filter.match(n.Type) {
			if err := d.postNotification(ctx, hook, n); err != nil {
				log.Printf("webhook: deliver to %s failed: %v", hook.URL, err)
				return
			}
		}
		if err := d.engine.Repo.SetWebhookCursor(ctx, hook.URL, n.ID); err != nil {
			log.Printf("webhook: save cursor failed: %v", err)
			return
		}
	}
}

func (d *notificationDispatcher) postNotification(ctx context.Context, hook config.Webhook, n domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Slipline-Notification", n.Type)
	req.Header.Set("X-Slipline-Delivery", fmt.Sprintf("%d", n.ID))
	req.Header.Set("X-Slipline-Project", n.ProjectID)
	res, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type typeFilter struct {
	all bool
	set map[string]struct{}
}

func newTypeFilter(types []string) typeFilter {
	if len(types) == 0 {
		return typeFilter{all: true}
	}
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		key := strings.TrimSpace(t)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return typeFilter{all: true}
	}
	return typeFilter{set: set}
}

func (f typeFilter) match(t string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[t]
	return ok
}
