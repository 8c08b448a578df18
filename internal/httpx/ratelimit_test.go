package httpx

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func post(handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	handler := NewRateLimiter(10, 5, nil).Middleware()(okHandler())

	for i := 0; i < 5; i++ {
		if rec := post(handler, "192.168.1.1:12345"); rec.Code != http.StatusOK {
			t.Errorf("Request %d: expected status 200, got %d", i+1, rec.Code)
		}
	}
}

func TestRateLimiter_BlocksWhenExceeded(t *testing.T) {
	handler := NewRateLimiter(2, 2, nil).Middleware()(okHandler())

	for i := 0; i < 2; i++ {
		post(handler, "192.168.1.1:12345")
	}

	rec := post(handler, "192.168.1.1:12345")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", rec.Code)
	}
	if rec.Body.String() == "" {
		t.Error("Expected error message in response body")
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}
}

func TestRateLimiter_SameHostDifferentPorts(t *testing.T) {
	handler := NewRateLimiter(1, 1, nil).Middleware()(okHandler())

	post(handler, "192.168.1.1:1000")
	if rec := post(handler, "192.168.1.1:2000"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected a new connection from the same host to share the limit, got %d", rec.Code)
	}
}

func TestRateLimiter_PerIPLimiting(t *testing.T) {
	handler := NewRateLimiter(2, 2, nil).Middleware()(okHandler())

	for i := 0; i < 2; i++ {
		post(handler, "192.168.1.1:12345")
	}

	if rec := post(handler, "192.168.1.1:12345"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("IP 1: Expected status 429, got %d", rec.Code)
	}
	if rec := post(handler, "192.168.1.2:12345"); rec.Code != http.StatusOK {
		t.Errorf("IP 2: Expected status 200, got %d", rec.Code)
	}
}

func TestRateLimiter_GetIsNotLimited(t *testing.T) {
	handler := NewRateLimiter(1, 1, nil).Middleware()(okHandler())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}

func TestRateLimiter_RecoversAfterWait(t *testing.T) {
	handler := NewRateLimiter(5, 1, nil).Middleware()(okHandler())

	if rec := post(handler, "192.168.1.1:12345"); rec.Code != http.StatusOK {
		t.Errorf("First request: expected 200, got %d", rec.Code)
	}
	if rec := post(handler, "192.168.1.1:12345"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("Second request: expected 429, got %d", rec.Code)
	}

	// 5 RPS refills one token every 200ms
	time.Sleep(250 * time.Millisecond)

	if rec := post(handler, "192.168.1.1:12345"); rec.Code != http.StatusOK {
		t.Errorf("Third request after wait: expected 200, got %d", rec.Code)
	}
}

func TestRateLimiter_ConcurrentRequests(t *testing.T) {
	handler := NewRateLimiter(100, 50, nil).Middleware()(okHandler())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				post(handler, "192.168.1.1:12345")
			}
		}()
	}
	wg.Wait()
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	now := time.Now()
	rl.now = func() time.Time { return now }
	handler := rl.Middleware()(okHandler())

	post(handler, "10.0.0.1:1")
	now = now.Add(5 * time.Minute)
	post(handler, "10.0.0.2:1")

	if n := rl.Evict(time.Minute); n != 1 {
		t.Fatalf("Expected 1 evicted entry, got %d", n)
	}
	// evicted client starts with a fresh bucket
	if rec := post(handler, "10.0.0.1:1"); rec.Code != http.StatusOK {
		t.Errorf("Expected evicted client to be allowed again, got %d", rec.Code)
	}
	if rec := post(handler, "10.0.0.2:1"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected active client to keep its limit, got %d", rec.Code)
	}
}

func TestRateLimiter_IgnoresForwardedHeadersFromUntrustedPeer(t *testing.T) {
	handler := NewRateLimiter(1, 1, nil).Middleware()(okHandler())

	admitted := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "203.0.113.7:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.1.0.%d", i))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			admitted++
		}
	}

	if admitted != 1 {
		t.Errorf("Expected rotating X-Forwarded-For to share one bucket, %d/50 admitted", admitted)
	}
}

func TestRateLimiter_TrustedProxyForwardsClient(t *testing.T) {
	proxies, err := ParseTrustedProxies("10.0.0.0/8")
	if err != nil {
		t.Fatal(err)
	}
	handler := NewRateLimiter(1, 1, proxies).Middleware()(okHandler())

	send := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "10.0.0.5:443"
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("198.51.100.1"); code != http.StatusOK {
		t.Errorf("first client: expected 200, got %d", code)
	}
	if code := send("198.51.100.2"); code != http.StatusOK {
		t.Errorf("second client behind the same proxy: expected 200, got %d", code)
	}
	if code := send("198.51.100.1"); code != http.StatusTooManyRequests {
		t.Errorf("repeat client: expected 429, got %d", code)
	}
}
