package integration

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/draftops/auctioneer/internal/auction"
	"github.com/draftops/auctioneer/internal/domain"
	"github.com/draftops/auctioneer/internal/gateway"
	"github.com/draftops/auctioneer/internal/handler"
	"github.com/draftops/auctioneer/internal/store"
	"github.com/draftops/auctioneer/tests/fixtures"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAdminLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newAdminHandler(t *testing.T) (*handler.AdminHandler, *auction.Manager) {
	t.Helper()
	db := fixtures.SetupTestDBWithMigrations(t)
	logger := testAdminLogger()

	manager := auction.NewManager(auction.DefaultConfig(), logger)
	t.Cleanup(manager.Shutdown)

	presets := store.NewPresetReader(db, logger)
	dispatcher := &gateway.LogDispatcher{Logger: logger}

	return handler.NewAdminHandler(manager, presets, dispatcher, logger), manager
}

func TestCreateAuction_SeatsFromPreset(t *testing.T) {
	h, manager := newAdminHandler(t)
	db := fixtures.SetupTestDBWithMigrations(t)
	presetID := fixtures.FullPreset(t, db, 2, 3, 100)

	body, _ := json.Marshal(domain.CreateAuctionRequest{PresetID: presetID})
	req := httptest.NewRequest("POST", "/admin/auctions", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateAuction(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp domain.CreateAuctionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AuctionID)
	assert.Len(t, resp.Tokens, 5)

	_, ok := manager.GetAuction(resp.AuctionID)
	assert.True(t, ok)
}

func TestCreateAuction_UnknownPresetReturnsNotFound(t *testing.T) {
	h, _ := newAdminHandler(t)

	body, _ := json.Marshal(domain.CreateAuctionRequest{PresetID: "does-not-exist"})
	req := httptest.NewRequest("POST", "/admin/auctions", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateAuction(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateAuction_MissingPresetIDIsRejected(t *testing.T) {
	h, _ := newAdminHandler(t)

	body, _ := json.Marshal(domain.CreateAuctionRequest{})
	req := httptest.NewRequest("POST", "/admin/auctions", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateAuction(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAndRemoveAuction(t *testing.T) {
	h, _ := newAdminHandler(t)
	db := fixtures.SetupTestDBWithMigrations(t)
	presetID := fixtures.FullPreset(t, db, 2, 3, 100)

	body, _ := json.Marshal(domain.CreateAuctionRequest{PresetID: presetID})
	createReq := httptest.NewRequest("POST", "/admin/auctions", bytes.NewReader(body))
	createRec := httptest.NewRecorder()
	h.CreateAuction(createRec, createReq)
	require.Equal(t, http.StatusCreated, createRec.Code)

	var created domain.CreateAuctionResponse
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	router := chi.NewRouter()
	router.Get("/admin/auctions/{id}", h.GetAuction)
	router.Delete("/admin/auctions/{id}", h.RemoveAuction)

	getReq := httptest.NewRequest("GET", "/admin/auctions/"+created.AuctionID, nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	assert.Equal(t, http.StatusOK, getRec.Code)

	delReq := httptest.NewRequest("DELETE", "/admin/auctions/"+created.AuctionID, nil)
	delRec := httptest.NewRecorder()
	router.ServeHTTP(delRec, delReq)
	assert.Equal(t, http.StatusNoContent, delRec.Code)

	getAfterReq := httptest.NewRequest("GET", "/admin/auctions/"+created.AuctionID, nil)
	getAfterRec := httptest.NewRecorder()
	router.ServeHTTP(getAfterRec, getAfterReq)
	assert.Equal(t, http.StatusNotFound, getAfterRec.Code)
}

func TestListAuctions_ReturnsLiveIDs(t *testing.T) {
	h, _ := newAdminHandler(t)
	db := fixtures.SetupTestDBWithMigrations(t)
	presetID := fixtures.FullPreset(t, db, 2, 2, 50)

	body, _ := json.Marshal(domain.CreateAuctionRequest{PresetID: presetID})
	createReq := httptest.NewRequest("POST", "/admin/auctions", bytes.NewReader(body))
	createRec := httptest.NewRecorder()
	h.CreateAuction(createRec, createReq)
	require.Equal(t, http.StatusCreated, createRec.Code)

	listReq := httptest.NewRequest("GET", "/admin/auctions", nil)
	listRec := httptest.NewRecorder()
	h.ListAuctions(listRec, listReq)

	assert.Equal(t, http.StatusOK, listRec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &resp))
	assert.EqualValues(t, 1, resp["total"])
}
