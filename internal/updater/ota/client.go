// Package ota is a client of the Hologram dashboard API, restricted to the
// calls needed to push a user image to a device over the air.
package ota

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hologram-io/dash-updater/pkg/log"
)

// DefaultAPIBase is the production dashboard API root.
const DefaultAPIBase = "https://dashboard.hologram.io/api/1/"

// PageLimit is the page size used for list calls. A short page ends paging.
const PageLimit = 1000

// ErrAPI is wrapped by every non-200 answer.
var ErrAPI = errors.New("dashboard api error")

type User struct {
	ID int `json:"id"`
}

type Organization struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Device struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type firmwareImage struct {
	ID int `json:"id"`
}

// envelope is the wrapper of every API answer.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// Client talks to the dashboard API with a single api key.
type Client struct {
	base   string
	apiKey string
	client *http.Client
}

// NewClient returns a client for base. A nil httpClient means
// http.DefaultClient.
func NewClient(base, apiKey string, httpClient *http.Client) *Client {
	if base == "" {
		base = DefaultAPIBase
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: base, apiKey: apiKey, client: httpClient}
}

// Me returns the owner of the api key.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.get(ctx, "users/me/", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Organizations lists every organization userID belongs to.
func (c *Client) Organizations(ctx context.Context, userID int) ([]Organization, error) {
	params := url.Values{"userid": {strconv.Itoa(userID)}}
	return list(ctx, c, "organizations/", params, func(o Organization) int { return o.ID })
}

// Devices lists every device of orgID.
func (c *Client) Devices(ctx context.Context, orgID int) ([]Device, error) {
	params := url.Values{"orgid": {strconv.Itoa(orgID)}}
	return list(ctx, c, "devices/", params, func(d Device) int { return d.ID })
}

// Update uploads the image at path to orgID and pushes it to deviceID.
func (c *Client) Update(ctx context.Context, deviceID, orgID int, path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("image file %s does not exist", path)
	}

	log.Info("Pushing firmware to device", "deviceID", deviceID)

	params := url.Values{"orgid": {strconv.Itoa(orgID)}}
	fwID, err := c.upload(ctx, params, path)
	if err != nil {
		return err
	}
	log.Info("Firmware image created", "firmwareID", fwID)

	body, err := json.Marshal(map[string][]int{"deviceids": {deviceID}})
	if err != nil {
		return err
	}

	endpoint := "firmwareimages/" + strconv.Itoa(fwID) + "/send"
	if err := c.do(ctx, http.MethodPost, endpoint, params, "application/json", bytes.NewReader(body), nil); err != nil {
		return fmt.Errorf("error pushing image: %w", err)
	}

	log.Info("OTA update sent", "deviceID", deviceID, "firmwareID", fwID)
	return nil
}

func (c *Client) upload(ctx context.Context, params url.Values, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("imagefile", filepath.Base(path))
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return 0, err
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}

	var img firmwareImage
	if err := c.do(ctx, http.MethodPost, "firmwareimages/", params, mw.FormDataContentType(), &buf, &img); err != nil {
		return 0, fmt.Errorf("error uploading image: %w", err)
	}
	return img.ID, nil
}

func list[T any](ctx context.Context, c *Client, endpoint string, params url.Values, id func(T) int) ([]T, error) {
	params.Set("limit", strconv.Itoa(PageLimit))

	var all []T
	for {
		var page []T
		if err := c.get(ctx, endpoint, params, &page); err != nil {
			return nil, err
		}
		all = append(all, page...)

		if len(page) < PageLimit {
			return all, nil
		}
		params.Set("startafter", strconv.Itoa(id(page[len(page)-1])))
	}
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if err := c.do(ctx, http.MethodGet, endpoint, params, "", nil, out); err != nil {
		return fmt.Errorf("error connecting to API: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, contentType string, body io.Reader, out any) error {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, method, c.base+endpoint+"?"+q.Encode(), body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	log.Debug("Calling dashboard API", "method", method, "endpoint", endpoint)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: %s", ErrAPI, resp.Status, strings.TrimSpace(string(raw)))
	}

	if out == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", endpoint, err)
	}
	return nil
}
