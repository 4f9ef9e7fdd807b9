package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"tenantcrm.dev/internal/config"
	"tenantcrm.dev/internal/ids"
	"tenantcrm.dev/internal/onboarding"
)

type client struct {
	base  string
	token string
	http  *http.Client
}

func (c *client) call(ctx context.Context, method, path string, body, out any, want int) {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			log.Fatalf("encode %s %s: %v", method, path, err)
		}
		payload = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, payload)
	if err != nil {
		log.Fatalf("build %s %s: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != want {
		log.Fatalf("%s %s: status %d, want %d: %s", method, path, resp.StatusCode, want, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			log.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
}

func main() {
	log.SetFlags(0)
	password := os.Getenv("CRM_DEMO_PASSWORD")
	if password == "" {
		log.Fatal("CRM_DEMO_PASSWORD is required")
	}
	c := &client{
		base: config.GetEnv("CRM_API_URL", "http://localhost:8080"),
		http: &http.Client{Timeout: 5 * time.Second},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	c.call(ctx, http.MethodGet, "/readyz", nil, nil, http.StatusOK)

	var login struct {
		Token string `json:"token"`
	}
	c.call(ctx, http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    onboarding.DemoAdminEmail,
		"password": password,
	}, &login, http.StatusOK)
	c.token = login.Token

	name := "Smoke " + ids.New()
	var account struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	c.call(ctx, http.MethodPost, "/v1/accounts", map[string]any{
		"name": name,
		"type": "PROSPECT",
	}, &account, http.StatusCreated)

	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
		Meta struct {
			Total int `json:"total"`
		} `json:"meta"`
	}
	c.call(ctx, http.MethodGet, "/v1/accounts?search="+url.QueryEscape(name), nil, &list, http.StatusOK)
	found := false
	for _, a := range list.Data {
		if a.ID == account.ID {
			found = true
		}
	}
	if !found {
		log.Fatalf("created account %s missing from list (total=%d)", account.ID, list.Meta.Total)
	}

	c.call(ctx, http.MethodDelete, "/v1/accounts/"+account.ID, nil, nil, http.StatusNoContent)
	c.call(ctx, http.MethodGet, "/v1/accounts/"+account.ID, nil, nil, http.StatusNotFound)
	c.call(ctx, http.MethodPost, "/v1/auth/logout", nil, nil, http.StatusNoContent)
	c.call(ctx, http.MethodGet, "/v1/auth/me", nil, nil, http.StatusUnauthorized)

	fmt.Printf("tenantcrm smoke test passed: account=%s name=%q\n", account.ID, name)
}
