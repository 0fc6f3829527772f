package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smallbiznis/orderbridge/internal/partner/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWithHTTPClient(srv.URL, &http.Client{Timeout: time.Second}, nil, nil)
}

func TestAuthenticateSendsClientCredentialsForm(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, authPath, r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grantType"))
		assert.Equal(t, "cid", r.PostForm.Get("clientId"))
		assert.Equal(t, "secret", r.PostForm.Get("clientSecret"))
		_ = json.NewEncoder(w).Encode(map[string]any{"accessToken": "tok", "expiresIn": 21600})
	})

	token, err := c.Authenticate(context.Background(), domain.Credentials{ClientID: "cid", ClientSecret: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "tok", token.AccessToken)
	assert.Equal(t, int64(21600), token.ExpiresIn)
}

func TestAuthenticateFailureIsAuthError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	})

	_, err := c.Authenticate(context.Background(), domain.Credentials{ClientID: "cid"})
	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.True(t, authErr.Authenticating)
	assert.Equal(t, http.StatusBadRequest, authErr.StatusCode)
	assert.Contains(t, authErr.Body, "invalid_client")
}

func TestPollBuildsRequestAndDecodesEvents(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pollingPath, r.URL.Path)
		assert.Equal(t, "RTP,DSP", r.URL.Query().Get("types"))
		assert.Equal(t, "true", r.URL.Query().Get("excludeHeartbeat"))
		assert.Equal(t, "m-1", r.Header.Get("x-polling-merchants"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":"evt1","orderId":"o1","code":"RTP","fullCode":"READY_TO_PICKUP"}]`))
	})

	events, err := c.Poll(context.Background(), "m-1", "tok", []string{"RTP", "DSP"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt1", events[0].ID)
	assert.Equal(t, "o1", events[0].OrderID)
	assert.Equal(t, "READY_TO_PICKUP", events[0].FullCode)
}

func TestPollNoContentIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	events, err := c.Poll(context.Background(), "m-1", "tok", []string{"RTP"})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPollStatusErrors(t *testing.T) {
	t.Run("unauthorized", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		_, err := c.Poll(context.Background(), "m-1", "tok", []string{"RTP"})
		var authErr *domain.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.False(t, authErr.Authenticating)
	})

	t.Run("server_error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
		})
		_, err := c.Poll(context.Background(), "m-1", "tok", []string{"RTP"})
		var apiErr *domain.APIRequestError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
		assert.Equal(t, OpPoll, apiErr.Op)
		assert.Equal(t, "boom", apiErr.Body)
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()
		c := NewWithHTTPClient(srv.URL, &http.Client{Timeout: 20 * time.Millisecond}, nil, nil)

		_, err := c.Poll(context.Background(), "m-1", "tok", []string{"RTP"})
		var netErr *domain.TransientNetworkError
		require.True(t, errors.As(err, &netErr))
		assert.Equal(t, OpPoll, netErr.Op)
	})
}

func TestAcknowledgeSendsIDs(t *testing.T) {
	var got []map[string]string
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, acknowledgePath, r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusAccepted)
	})

	require.NoError(t, c.Acknowledge(context.Background(), "tok", nil))
	assert.Equal(t, 0, calls)

	require.NoError(t, c.Acknowledge(context.Background(), "tok", []string{"evt1", "evt2"}))
	assert.Equal(t, 1, calls)
	assert.Equal(t, []map[string]string{{"id": "evt1"}, {"id": "evt2"}}, got)
}

func TestGetOrderDetailsKeepsRawPayload(t *testing.T) {
	payload := `{"id":"o1","displayId":"4821","customer":{"name":"Ana","phone":{"number":"0800 123"}},` +
		`"delivery":{"deliveryAddress":{"formattedAddress":"Rua A, 1","coordinates":{"latitude":-23.5,"longitude":-46.6}}}}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, orderPath+"o1", r.URL.Path)
		_, _ = w.Write([]byte(payload))
	})

	order, err := c.GetOrderDetails(context.Background(), "tok", "o1")
	require.NoError(t, err)
	assert.Equal(t, "4821", order.DisplayID)
	assert.Equal(t, "Ana", order.Customer.Name)
	assert.Equal(t, "0800 123", order.Customer.Phone.Number)
	require.NotNil(t, order.Delivery.DeliveryAddress.Coordinates)
	assert.InDelta(t, -23.5, order.Delivery.DeliveryAddress.Coordinates.Latitude, 1e-9)
	assert.JSONEq(t, payload, string(order.Raw))
}

func TestSendStatusPostsAction(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, statusPath+"o1/assignDriver", r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
	})

	require.NoError(t, c.SendStatus(context.Background(), "tok", "o1", "assignDriver"))
}
