package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/homelab/rack/internal/commissioning"
	"github.com/jbweber/homelab/rack/internal/datastore"
	"github.com/jbweber/homelab/rack/internal/testutil"
)

func setupTestAPI(t *testing.T, dhcp HostMapper) (http.Handler, *datastore.Datastore) {
	t.Helper()
	ds := testutil.NewTestDatastore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ingester := commissioning.NewIngester(ds, nil, commissioning.Options{Logger: logger})
	return NewAPI(ds, ingester, dhcp, logger).Handler(), ds
}

func doRequest(t *testing.T, h http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "192.168.1.100:12345"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func TestHealthAndMetrics(t *testing.T) {
	h, _ := setupTestAPI(t, nil)

	w := doRequest(t, h, "GET", "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, h, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rack_http_requests_total")
}

func TestListNodes_Empty(t *testing.T) {
	h, _ := setupTestAPI(t, nil)

	w := doRequest(t, h, "GET", "/api/v1/nodes", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response []NodeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Len(t, response, 0)
}

func TestCreateNode(t *testing.T) {
	h, _ := setupTestAPI(t, nil)

	w := doRequest(t, h, "POST", "/api/v1/nodes", jsonBody(t, CreateNodeRequest{Hostname: "alpha"}))
	require.Equal(t, http.StatusCreated, w.Code)

	var created NodeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, "alpha", created.Hostname)
	assert.NotEmpty(t, created.SystemID)
	assert.Equal(t, []string{}, created.Routers)

	w = doRequest(t, h, "GET", "/api/v1/nodes/"+created.SystemID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, h, "POST", "/api/v1/nodes", jsonBody(t, CreateNodeRequest{SystemID: created.SystemID, Hostname: "beta"}))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateNode_InvalidInput(t *testing.T) {
	h, _ := setupTestAPI(t, nil)

	w := doRequest(t, h, "POST", "/api/v1/nodes", strings.NewReader("invalid json"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, h, "POST", "/api/v1/nodes", jsonBody(t, CreateNodeRequest{}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "Hostname is required", response.Error)
}

func TestGetNode_NotFound(t *testing.T) {
	h, _ := setupTestAPI(t, nil)

	w := doRequest(t, h, "GET", "/api/v1/nodes/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, h, "DELETE", "/api/v1/nodes/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateAndDeleteNode(t *testing.T) {
	h, ds := setupTestAPI(t, nil)
	node := testutil.CreateTestNode(t, ds, "node-1", "alpha")
	other := testutil.CreateTestNode(t, ds, "node-2", "beta")

	skip := true
	hostname := "gamma"
	w := doRequest(t, h, "PATCH", "/api/v1/nodes/"+node.SystemID, jsonBody(t, UpdateNodeRequest{Hostname: &hostname, SkipStorage: &skip}))
	require.Equal(t, http.StatusOK, w.Code)

	var updated NodeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
	assert.Equal(t, "gamma", updated.Hostname)
	assert.True(t, updated.SkipStorage)
	assert.False(t, updated.SkipNetworking)

	// A boot disk must belong to the node
	device := ingestDevices(t, h, other.SystemID)
	w = doRequest(t, h, "PATCH", "/api/v1/nodes/"+node.SystemID, jsonBody(t, UpdateNodeRequest{BootDiskID: &device}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, h, "PATCH", "/api/v1/nodes/"+other.SystemID, jsonBody(t, UpdateNodeRequest{BootDiskID: &device}))
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, h, "DELETE", "/api/v1/nodes/"+node.SystemID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doRequest(t, h, "GET", "/api/v1/nodes/"+node.SystemID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ingestDevices posts a one-disk block device report and returns the disk's ID
func ingestDevices(t *testing.T, h http.Handler, systemID string) int64 {
	t.Helper()
	report := `[{"NAME": "sda", "PATH": "/dev/sda", "SIZE": "1073741824", "BLOCK_SIZE": "512",
		"MODEL": "disk", "SERIAL": "one", "RO": "0", "RM": "0", "ROTA": "1", "SATA": "1", "RPM": "7200"}]`
	w := doRequest(t, h, "POST", "/api/v1/nodes/"+systemID+"/results/"+commissioning.ScriptBlockDevices, strings.NewReader(report))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, h, "GET", "/api/v1/nodes/"+systemID+"/block-devices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var devices []BlockDeviceResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&devices))
	require.Len(t, devices, 1)
	assert.Equal(t, []string{"rotary", "7200rpm", "sata"}, devices[0].Tags)
	return devices[0].ID
}

func TestIngestResults(t *testing.T) {
	h, ds := setupTestAPI(t, nil)
	node := testutil.CreateTestNode(t, ds, "node-1", "alpha")
	testutil.CreateTestSubnet(t, ds, "192.168.0.0/24")

	ipAddr := `2: eth0: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500 qdisc pfifo_fast state UP
    link/ether 00:00:00:00:00:01 brd ff:ff:ff:ff:ff:ff
    inet 192.168.0.3/24 brd 192.168.0.255 scope global eth0
`
	w := doRequest(t, h, "POST", "/api/v1/nodes/node-1/results/"+commissioning.ScriptNetworkInterfaces, strings.NewReader(ipAddr))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, h, "GET", "/api/v1/nodes/node-1/interfaces", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ifaces []InterfaceResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&ifaces))
	require.Len(t, ifaces, 1)
	assert.Equal(t, "eth0", ifaces[0].Name)
	assert.Equal(t, "physical", ifaces[0].Type)
	assert.Equal(t, []string{"192.168.0.3"}, ifaces[0].IPAddresses)

	w = doRequest(t, h, "POST", "/api/v1/nodes/node-1/results/"+commissioning.ScriptVirtuality+"?exit_status=0", strings.NewReader("virtual\n"))
	require.Equal(t, http.StatusNoContent, w.Code)
	w = doRequest(t, h, "GET", "/api/v1/nodes/node-1/tags", nil)
	assert.JSONEq(t, `["virtual"]`, w.Body.String())

	w = doRequest(t, h, "POST", "/api/v1/nodes/node-1/results/"+commissioning.ScriptCPUInfo+"?exit_status=1", strings.NewReader("processor\t: 0\n"))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, h, "GET", "/api/v1/nodes/node-1/results", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var results []ResultResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&results))
	assert.Len(t, results, 3)

	stored, err := ds.Repositories().Nodes.FindByID(context.Background(), node.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.CPUCount)
}

func TestIngestResults_Errors(t *testing.T) {
	h, ds := setupTestAPI(t, nil)
	testutil.CreateTestNode(t, ds, "node-1", "alpha")

	w := doRequest(t, h, "POST", "/api/v1/nodes/missing/results/00-lshw", strings.NewReader("<node/>"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, h, "POST", "/api/v1/nodes/node-1/results/00-lshw?exit_status=abc", strings.NewReader("<node/>"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubnets(t *testing.T) {
	h, _ := setupTestAPI(t, nil)

	w := doRequest(t, h, "POST", "/api/v1/subnets", jsonBody(t, SubnetRequest{Name: "lab", CIDR: "10.0.0.7/24", Gateway: "10.0.0.1"}))
	require.Equal(t, http.StatusCreated, w.Code)
	var created SubnetResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, "10.0.0.0/24", created.CIDR)

	w = doRequest(t, h, "POST", "/api/v1/subnets", jsonBody(t, SubnetRequest{Name: "other", CIDR: "10.0.0.0/24"}))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(t, h, "POST", "/api/v1/subnets", jsonBody(t, SubnetRequest{Name: "bad", CIDR: "nope"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, h, "GET", "/api/v1/subnets", nil)
	var subnets []SubnetResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&subnets))
	assert.Len(t, subnets, 1)

	w = doRequest(t, h, "GET", "/api/v1/subnets/invalid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, h, "DELETE", "/api/v1/subnets/"+jsonNumber(created.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, h, "GET", "/api/v1/subnets/"+jsonNumber(created.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func jsonNumber(id int64) string {
	data, _ := json.Marshal(id)
	return string(data)
}
