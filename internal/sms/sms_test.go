package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+254712345678", "+254712345678"},
		{"254712345678", "+254712345678"},
		{"0712345678", "+254712345678"},
		{"0112345678", "+254112345678"},
		{" 0712 345 678 ", "+254712345678"},
		{"", ""},
		{"12345", ""},
		{"+15551234567", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizePhone(c.in), "input %q", c.in)
	}
}

func TestSendBulk_CountsAcceptedRecipients(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"username": r.PostFormValue("username"),
			"to":       r.PostFormValue("to"),
			"message":  r.PostFormValue("message"),
			"from":     r.PostFormValue("from"),
		}
		assert.Equal(t, "test-key", r.Header.Get("apiKey"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"SMSMessageData":{"Recipients":[
			{"status":"Success"},{"status":"Success"},{"status":"InvalidPhoneNumber"}]}}`))
	}))
	defer srv.Close()

	at := NewAfricasTalking("sandbox", "test-key", "NDMA-KE", srv.URL, 5*time.Second)
	n, err := at.SendBulk(context.Background(), []string{"0712345678", "+254700000001", "254733000000"}, "FLOOD ALERT")
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, "sandbox", gotForm["username"])
	assert.Equal(t, "NDMA-KE", gotForm["from"])
	assert.Equal(t, "FLOOD ALERT", gotForm["message"])
	assert.Equal(t, "+254712345678,+254700000001,+254733000000", gotForm["to"])
}

func TestSendBulk_AllRejectedIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"SMSMessageData":{"Recipients":[{"status":"InvalidPhoneNumber"}]}}`))
	}))
	defer srv.Close()

	at := NewAfricasTalking("sandbox", "k", "NDMA-KE", srv.URL, 5*time.Second)
	_, err := at.SendBulk(context.Background(), []string{"0712345678"}, "msg")
	assert.Error(t, err)
}

func TestSendBulk_GatewayErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	at := NewAfricasTalking("sandbox", "bad-key", "NDMA-KE", srv.URL, 5*time.Second)
	_, err := at.SendBulk(context.Background(), []string{"0712345678"}, "msg")
	assert.Error(t, err)
}

func TestSendBulk_NoValidRecipients(t *testing.T) {
	at := NewAfricasTalking("sandbox", "k", "NDMA-KE", "http://unused", time.Second)
	_, err := at.SendBulk(context.Background(), []string{"not-a-number"}, "msg")
	assert.Error(t, err)
	_, err = at.SendBulk(context.Background(), nil, "msg")
	assert.Error(t, err)
}
