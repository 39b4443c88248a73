package ota

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	devices  int
	uploaded []byte
	filename string
	sentTo   []int
	pages    []string
}

func (f *fakeAPI) router(t *testing.T) http.Handler {
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.URL.Query().Get("apikey") != "secret" {
				http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	r.HandleFunc("/api/1/users/me/", func(w http.ResponseWriter, _ *http.Request) {
		writeData(t, w, map[string]any{"id": 7})
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/1/organizations/", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "7", req.URL.Query().Get("userid"))
		writeData(t, w, []Organization{{ID: 1, Name: "personal"}})
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/1/devices/", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		assert.Equal(t, "1000", q.Get("limit"))
		f.pages = append(f.pages, q.Get("startafter"))

		start := 0
		if s := q.Get("startafter"); s != "" {
			start, _ = strconv.Atoi(s)
		}
		var page []Device
		for id := start + 1; id <= f.devices && len(page) < PageLimit; id++ {
			page = append(page, Device{ID: id, Name: fmt.Sprintf("dash-%d", id)})
		}
		writeData(t, w, page)
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/1/firmwareimages/", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "1", req.URL.Query().Get("orgid"))
		file, hdr, err := req.FormFile("imagefile")
		if !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		f.filename = hdr.Filename
		f.uploaded, _ = io.ReadAll(file)
		writeData(t, w, map[string]any{"id": 42})
	}).Methods(http.MethodPost)

	r.HandleFunc("/api/1/firmwareimages/{id}/send", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "42", mux.Vars(req)["id"])
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		var body struct {
			DeviceIDs []int `json:"deviceids"`
		}
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		f.sentTo = body.DeviceIDs
		writeData(t, w, map[string]any{})
	}).Methods(http.MethodPost)

	return r
}

func writeData(t *testing.T, w http.ResponseWriter, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(t, json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data}))
}

func newTestClient(t *testing.T, api *fakeAPI, key string) *Client {
	srv := httptest.NewServer(api.router(t))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api/1", key, srv.Client())
}

func TestMeAndOrganizations(t *testing.T) {
	c := newTestClient(t, &fakeAPI{}, "secret")
	ctx := context.Background()

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, me.ID)

	orgs, err := c.Organizations(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, []Organization{{ID: 1, Name: "personal"}}, orgs)
}

func TestDevicesPaging(t *testing.T) {
	api := &fakeAPI{devices: 2500}
	c := newTestClient(t, api, "secret")

	devices, err := c.Devices(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, devices, 2500)
	assert.Equal(t, 2500, devices[len(devices)-1].ID)
	assert.Equal(t, []string{"", "1000", "2000"}, api.pages)
}

func TestDevicesExactPageRequestsOneMore(t *testing.T) {
	api := &fakeAPI{devices: 1000}
	c := newTestClient(t, api, "secret")

	devices, err := c.Devices(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, devices, 1000)
	assert.Equal(t, []string{"", "1000"}, api.pages)
}

func TestBadKey(t *testing.T) {
	c := newTestClient(t, &fakeAPI{}, "wrong")

	_, err := c.Me(context.Background())
	require.ErrorIs(t, err, ErrAPI)
	assert.Contains(t, err.Error(), "bad key")
}

func TestUpdate(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api, "secret")

	path := filepath.Join(t.TempDir(), "app.bin")
	require.NoError(t, os.WriteFile(path, []byte("user image"), 0o644))

	require.NoError(t, c.Update(context.Background(), 99, 1, path))
	assert.Equal(t, "app.bin", api.filename)
	assert.Equal(t, []byte("user image"), api.uploaded)
	assert.Equal(t, []int{99}, api.sentTo)
}

func TestUpdateMissingFile(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api, "secret")

	err := c.Update(context.Background(), 99, 1, filepath.Join(t.TempDir(), "nope.bin"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Nil(t, api.uploaded)
}
