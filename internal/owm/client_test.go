package owm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPayload = `{
	"coord": {"lon": -0.1257, "lat": 51.5085},
	"weather": [{"id": 803, "main": "Clouds", "description": "broken clouds", "icon": "04d"}],
	"base": "stations",
	"main": {"temp": 18.4, "feels_like": 17.9, "temp_min": 16.1, "temp_max": 20.2, "pressure": 1014, "humidity": 72},
	"visibility": 10000,
	"wind": {"speed": 5.1, "deg": 250},
	"clouds": {"all": 75},
	"dt": 1788264000,
	"sys": {"country": "GB", "sunrise": 1788238000, "sunset": 1788287000},
	"timezone": 3600,
	"id": 2643743,
	"name": "London",
	"cod": 200
}`

func testClient(t *testing.T, baseURL string) (*Client, *RateLimiter) {
	t.Helper()
	limiter := NewRateLimiter(60, nil)
	client := NewClient(ClientConfig{
		BaseURL:        baseURL,
		APIKey:         "test-key",
		Units:          "metric",
		RequestTimeout: 2 * time.Second,
		ConnectTimeout: time.Second,
		RetryAttempts:  3,
		RetryBackoff:   time.Millisecond,
	}, limiter, zerolog.Nop())
	return client, limiter
}

func TestClientCurrent(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		assert.Equal(t, "London", r.URL.Query().Get("q"))
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		w.Write([]byte(validPayload))
	}))
	defer srv.Close()

	client, _ := testClient(t, srv.URL)
	m, err := client.Current(context.Background(), "London")
	require.NoError(t, err)

	assert.Equal(t, "London", m.CityName)
	assert.Equal(t, "GB", m.CountryCode)
	assert.Equal(t, 18.4, m.Temperature)
	assert.Equal(t, time.Unix(1788264000, 0).UTC(), m.DataTimestamp)
	assert.EqualValues(t, 1, atomic.LoadInt64(&calls))
}

func TestClientCurrentByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2643743", r.URL.Query().Get("id"))
		w.Write([]byte(validPayload))
	}))
	defer srv.Close()

	client, _ := testClient(t, srv.URL)
	m, err := client.CurrentByID(context.Background(), 2643743)
	require.NoError(t, err)
	assert.Equal(t, 2643743, m.CityID)
}

func TestClientStatusMapping(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"not found", http.StatusNotFound, ErrCityNotFound},
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var calls int64
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt64(&calls, 1)
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			client, _ := testClient(t, srv.URL)
			_, err := client.Current(context.Background(), "Nowhere")
			assert.ErrorIs(t, err, tc.sentinel)
			assert.EqualValues(t, 1, atomic.LoadInt64(&calls), "4xx responses are never retried")
		})
	}
}

func TestClientUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client, _ := testClient(t, srv.URL)
	_, err := client.Current(context.Background(), "London")

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusBadGateway, upstream.StatusCode)
}

func TestClientMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name": "London", "main": {`))
	}))
	defer srv.Close()

	client, _ := testClient(t, srv.URL)
	_, err := client.Current(context.Background(), "London")

	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "London", malformed.City)
}

func TestClientSchemaViolation(t *testing.T) {
	// Humidity above 100 passes decoding but fails validation.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"coord": {"lon": 0, "lat": 0},
			"main": {"temp": 20, "humidity": 150},
			"dt": 1788264000,
			"sys": {"country": "GB"},
			"id": 2643743,
			"name": "London"
		}`))
	}))
	defer srv.Close()

	client, _ := testClient(t, srv.URL)
	_, err := client.Current(context.Background(), "London")

	var malformed *MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
}

func TestClientRetriesTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := srv.URL
	srv.Close() // every dial now fails

	client, limiter := testClient(t, baseURL)
	_, err := client.Current(context.Background(), "London")

	var transport *TransportError
	require.ErrorAs(t, err, &transport)
	assert.Equal(t, 3, transport.Attempts)

	// One admission for the fetch plus one recorded slot per retry.
	assert.Equal(t, 3, limiter.Stats().RequestsLastMinute)
}

func TestClientRetryThenSuccess(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			// Drop the first request mid-flight.
			conn, _, err := w.(http.Hijacker).Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.Write([]byte(validPayload))
	}))
	defer srv.Close()

	client, _ := testClient(t, srv.URL)
	m, err := client.Current(context.Background(), "London")
	require.NoError(t, err)
	assert.Equal(t, "London", m.CityName)
	assert.EqualValues(t, 2, atomic.LoadInt64(&calls))
}

func TestIsTyped(t *testing.T) {
	assert.True(t, isTyped(ErrCityNotFound))
	assert.True(t, isTyped(&UpstreamError{StatusCode: 502}))
	assert.True(t, isTyped(&MalformedResponseError{City: "x", Err: errors.New("bad")}))
	assert.False(t, isTyped(errors.New("connection refused")))
}
