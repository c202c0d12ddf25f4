package rest

import (
	"bytes"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/su225/networktables/node/datastore"
	"github.com/su225/networktables/node/entry"
	"github.com/su225/networktables/node/mock"
	"github.com/tidwall/gjson"
)

func getTestAPIServer(store datastore.DataStore, rateLimit float64, jwtSecret string) *httptest.Server {
	apiServer := NewAPIServer(0, 500, rateLimit, 1, jwtSecret, store)
	testServer := httptest.NewServer(apiServer.Handler())
	return testServer
}

func do(t *testing.T, method, url, body string, header http.Header) (int, gjson.Result) {
	request, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	for key, values := range header {
		request.Header[key] = values
	}
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	defer response.Body.Close()
	buf := new(bytes.Buffer)
	buf.ReadFrom(response.Body)
	return response.StatusCode, gjson.ParseBytes(buf.Bytes())
}

func TestListAndGetEntries(t *testing.T) {
	ts := getTestAPIServer(mock.GetDefaultMockDataStore(true), 0, "")
	defer ts.Close()

	status, body := do(t, "GET", ts.URL+"/v1/entries?prefix=/SmartDashboard/", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(2), body.Get("#").Int())
	assert.Equal(t, "/SmartDashboard/mode", body.Get("0.name").String())
	assert.Equal(t, "string", body.Get("0.value.type").String())

	status, body = do(t, "GET", ts.URL+"/v1/entries/2", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "double[]", body.Get("value.type").String())
	assert.Equal(t, 2.0, body.Get("value.value.1").Float())

	status, body = do(t, "GET", ts.URL+"/v1/entries?name=/SmartDashboard/speed", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(0), body.Get("id").Int())

	status, _ = do(t, "GET", ts.URL+"/v1/entries/42", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = do(t, "GET", ts.URL+"/v1/entries/70000", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestListEntriesWithNonFiniteDoubles(t *testing.T) {
	store := datastore.NewMockDataStore(true, []entry.Entry{
		{ID: 0, EntryData: entry.NewEntryData("/vision/distance", 0, entry.DoubleValue(math.NaN()))},
		{ID: 1, EntryData: entry.NewEntryData("/vision/bounds", 0, entry.DoubleArrayValue([]float64{math.Inf(1), 2}))},
	}, nil)
	ts := getTestAPIServer(store, 0, "")
	defer ts.Close()

	status, body := do(t, "GET", ts.URL+"/v1/entries", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "NaN", body.Get(`#(name=="/vision/distance").value.value`).String())
	assert.Equal(t, "Infinity", body.Get(`#(name=="/vision/bounds").value.value.0`).String())
}

func TestCreateEntry(t *testing.T) {
	ts := getTestAPIServer(mock.GetDefaultMockDataStore(true), 0, "")
	defer ts.Close()

	status, body := do(t, "POST", ts.URL+"/v1/entries",
		`{"name": "/ws_test", "type": "double", "value": 1.0}`, nil)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, int64(3), body.Get("id").Int())

	status, _ = do(t, "POST", ts.URL+"/v1/entries",
		`{"name": "/ws_test", "type": "double", "value": 2.0}`, nil)
	assert.Equal(t, http.StatusConflict, status)

	badBodies := []string{
		`not json`,
		`{"type": "double", "value": 1}`,
		`{"name": "/x", "type": "quaternion", "value": 1}`,
		`{"name": "/x", "type": "boolean[]", "value": [true, 1]}`,
		`{"name": "/x", "type": "boolean", "value": true, "flags": 256}`,
	}
	for _, badBody := range badBodies {
		status, _ = do(t, "POST", ts.URL+"/v1/entries", badBody, nil)
		assert.Equal(t, http.StatusBadRequest, status, badBody)
	}
}

func TestUpdateValueAndFlags(t *testing.T) {
	store := mock.GetDefaultMockDataStore(true)
	ts := getTestAPIServer(store, 0, "")
	defer ts.Close()

	status, body := do(t, "PUT", ts.URL+"/v1/entries/0/value", `{"value": 9.5}`, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 9.5, body.Get("value.value").Float())
	assert.Equal(t, int64(2), body.Get("seqnum").Int())

	status, _ = do(t, "PUT", ts.URL+"/v1/entries/0/value", `{"value": "fast"}`, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = do(t, "PUT", ts.URL+"/v1/entries/0/flags", `{"flags": 1}`, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1), body.Get("flags").Int())

	stored, err := store.GetEntry(0)
	require.NoError(t, err)
	assert.True(t, stored.IsPersistent())
}

func TestDeleteAndClear(t *testing.T) {
	store := mock.GetDefaultMockDataStore(true)
	ts := getTestAPIServer(store, 0, "")
	defer ts.Close()

	status, _ := do(t, "DELETE", ts.URL+"/v1/entries/1", "", nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = do(t, "DELETE", ts.URL+"/v1/entries/1", "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, "DELETE", ts.URL+"/v1/entries", "", nil)
	assert.Equal(t, http.StatusNoContent, status)
	entries, err := store.ListEntries("")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCallProcedure(t *testing.T) {
	store := datastore.NewMockDataStore(true, nil, nil)
	id := store.RegisterProcedure("/rpc/upper", bytes.ToUpper)
	ts := getTestAPIServer(store, 0, "")
	defer ts.Close()

	// "nt" in base64
	status, body := do(t, "POST", ts.URL+"/v1/procedures/"+itoa(id), `{"parameter": "bnQ="}`, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "TlQ=", body.Get("result").String())

	status, _ = do(t, "POST", ts.URL+"/v1/procedures/"+itoa(id), `{"parameter": "***"}`, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = do(t, "POST", ts.URL+"/v1/procedures/999", `{}`, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListClients(t *testing.T) {
	ts := getTestAPIServer(mock.GetDefaultMockDataStore(true), 0, "")
	defer ts.Close()

	status, body := do(t, "GET", ts.URL+"/v1/clients", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(2), body.Get("#").Int())
	assert.Equal(t, mock.SampleClientName0, body.Get("0.name").String())
	assert.False(t, body.Get("1.handshaken").Bool())
}

func TestDataStoreFailureIsInternalError(t *testing.T) {
	ts := getTestAPIServer(datastore.NewMockDataStore(false, nil, nil), 0, "")
	defer ts.Close()
	status, _ := do(t, "GET", ts.URL+"/v1/entries", "", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestRateLimit(t *testing.T) {
	ts := getTestAPIServer(datastore.NewMockDataStore(true, nil, nil), 0.001, "")
	defer ts.Close()

	status, _ := do(t, "GET", ts.URL+"/v1/entries", "", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = do(t, "GET", ts.URL+"/v1/entries", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	status, _ = do(t, "GET", ts.URL+"/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestBearerTokenIsRequiredWhenSecretIsSet(t *testing.T) {
	secret := "s3cret"
	ts := getTestAPIServer(datastore.NewMockDataStore(true, nil, nil), 0, secret)
	defer ts.Close()

	status, _ := do(t, "GET", ts.URL+"/v1/entries", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	sign := func(key string, method jwt.SigningMethod) http.Header {
		claims := jwt.RegisteredClaims{
			Subject:   "operator",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		}
		signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(key))
		require.NoError(t, err)
		return http.Header{"Authorization": []string{"Bearer " + signed}}
	}
	status, _ = do(t, "GET", ts.URL+"/v1/entries", "", sign(secret, jwt.SigningMethodHS256))
	assert.Equal(t, http.StatusOK, status)
	status, _ = do(t, "GET", ts.URL+"/v1/entries", "", sign("wrong", jwt.SigningMethodHS256))
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = do(t, "GET", ts.URL+"/v1/entries", "", sign(secret, jwt.SigningMethodHS512))
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = do(t, "GET", ts.URL+"/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestStartAndDestroy(t *testing.T) {
	apiServer := NewAPIServer(0, 500, 0, 0, "", datastore.NewMockDataStore(true, nil, nil))
	require.NoError(t, apiServer.Start())
	status, _ := do(t, "GET", "http://"+apiServer.Addr().String()+"/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	require.NoError(t, apiServer.Destroy())
}

func itoa(id uint16) string {
	return strconv.Itoa(int(id))
}
