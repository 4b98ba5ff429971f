package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/grocerytracker/internal/backup"
	"github.com/dukerupert/grocerytracker/internal/tracker"
)

func setupServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tr, err := tracker.Open(":memory:", logger)
	if err != nil {
		t.Fatalf("open tracker: %v", err)
	}
	t.Cleanup(func() { tr.Close() })

	mgr := backup.NewManager(backup.Config{Dir: t.TempDir()}, tr.DB(), logger)
	srv := New(tr, mgr, opts, logger)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func do(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, string(data)
}

type purchaseJSON struct {
	ID           int64   `json:"id"`
	ItemName     string  `json:"item_name"`
	Price        string  `json:"price"`
	Quantity     *string `json:"quantity"`
	Unit         string  `json:"unit"`
	Store        string  `json:"store"`
	PurchaseDate string  `json:"purchase_date"`
}

func create(t *testing.T, base, body string) purchaseJSON {
	t.Helper()
	resp, data := do(t, "POST", base+"/api/purchases", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", resp.StatusCode, data)
	}
	var p purchaseJSON
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		t.Fatalf("decode purchase: %v", err)
	}
	return p
}

func seed(t *testing.T, base string) {
	t.Helper()
	create(t, base, `{"item_name":"Milk","price":3.89,"quantity":1,"unit":"gal","store":"Aldi","purchase_date":"2024-01-05"}`)
	create(t, base, `{"item_name":"Milk","price":"4.29","store":"Kroger","purchase_date":"2024-03-01"}`)
	create(t, base, `{"item_name":"Bread","price":2.49,"purchase_date":"2024-02-15"}`)
}

func priceEquals(t *testing.T, got, want string) {
	t.Helper()
	g, err := decimal.NewFromString(got)
	if err != nil || !g.Equal(decimal.RequireFromString(want)) {
		t.Errorf("price = %q, want %s", got, want)
	}
}

func TestHealth(t *testing.T) {
	_, ts := setupServer(t, Options{})
	resp, body := do(t, "GET", ts.URL+"/health", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"ok"`) {
		t.Errorf("health = %d %s", resp.StatusCode, body)
	}
}

func TestCreatePurchase(t *testing.T) {
	_, ts := setupServer(t, Options{})

	p := create(t, ts.URL, `{"item_name":"  Milk ","price":3.999,"quantity":"2","unit":"gal","store":"Aldi","purchase_date":"2024-03-01"}`)
	if p.ID < 1 || p.ItemName != "Milk" || p.Unit != "gal" || p.Store != "Aldi" || p.PurchaseDate != "2024-03-01" {
		t.Errorf("created = %+v", p)
	}
	priceEquals(t, p.Price, "4.00")
	if p.Quantity == nil || *p.Quantity != "2" {
		t.Errorf("quantity = %v, want 2", p.Quantity)
	}

	resp, body := do(t, "GET", ts.URL+"/api/purchases/"+jsonInt(p.ID), "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"item_name":"Milk"`) {
		t.Errorf("get = %d %s", resp.StatusCode, body)
	}
}

func jsonInt(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestCreatePurchaseValidation(t *testing.T) {
	_, ts := setupServer(t, Options{})

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"empty name", `{"item_name":"  ","price":1}`, "item_name"},
		{"negative price", `{"item_name":"Milk","price":-1}`, "price"},
		{"missing price", `{"item_name":"Milk"}`, "price"},
		{"negative quantity", `{"item_name":"Milk","price":1,"quantity":-2}`, "quantity"},
		{"bad date", `{"item_name":"Milk","price":1,"purchase_date":"03/01/2024"}`, "purchase_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, "POST", ts.URL+"/api/purchases", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", resp.StatusCode, body)
			}
			var e map[string]string
			json.Unmarshal([]byte(body), &e)
			if e["field"] != tt.field {
				t.Errorf("field = %q, want %q", e["field"], tt.field)
			}
		})
	}

	resp, _ := do(t, "POST", ts.URL+"/api/purchases", `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed JSON status = %d, want 400", resp.StatusCode)
	}

	_, body := do(t, "GET", ts.URL+"/api/purchases", "")
	if strings.TrimSpace(body) != "[]" {
		t.Errorf("purchases after rejected creates = %s, want []", body)
	}
}

func TestListPurchasesFiltered(t *testing.T) {
	_, ts := setupServer(t, Options{})
	seed(t, ts.URL)

	var all []purchaseJSON
	_, body := do(t, "GET", ts.URL+"/api/purchases", "")
	json.Unmarshal([]byte(body), &all)
	if len(all) != 3 || all[0].PurchaseDate != "2024-03-01" || all[2].PurchaseDate != "2024-01-05" {
		t.Errorf("list = %+v, want newest first", all)
	}

	var aldi []purchaseJSON
	_, body = do(t, "GET", ts.URL+"/api/purchases?store=Aldi", "")
	json.Unmarshal([]byte(body), &aldi)
	if len(aldi) != 1 || aldi[0].Store != "Aldi" {
		t.Errorf("store filter = %+v", aldi)
	}

	var feb []purchaseJSON
	_, body = do(t, "GET", ts.URL+"/api/purchases?from=2024-02-01&to=2024-02-29", "")
	json.Unmarshal([]byte(body), &feb)
	if len(feb) != 1 || feb[0].ItemName != "Bread" {
		t.Errorf("date filter = %+v", feb)
	}

	resp, _ := do(t, "GET", ts.URL+"/api/purchases?from=yesterday", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad from status = %d, want 400", resp.StatusCode)
	}
}

func TestDeletePurchase(t *testing.T) {
	_, ts := setupServer(t, Options{})
	p := create(t, ts.URL, `{"item_name":"Milk","price":3.99}`)
	url := ts.URL + "/api/purchases/" + jsonInt(p.ID)

	if resp, _ := do(t, "DELETE", url, ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", resp.StatusCode)
	}
	if resp, _ := do(t, "DELETE", url, ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("repeat delete status = %d, want 204", resp.StatusCode)
	}
	if resp, _ := do(t, "GET", url, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("get deleted status = %d, want 404", resp.StatusCode)
	}
	if resp, _ := do(t, "DELETE", ts.URL+"/api/purchases/abc", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("delete invalid id status = %d, want 400", resp.StatusCode)
	}
}

func TestDeleteUnknownIsNotCounted(t *testing.T) {
	_, ts := setupServer(t, Options{})

	for _, id := range []string{"999", "1000"} {
		if resp, _ := do(t, "DELETE", ts.URL+"/api/purchases/"+id, ""); resp.StatusCode != http.StatusNoContent {
			t.Errorf("delete %s status = %d, want 204", id, resp.StatusCode)
		}
	}
	_, body := do(t, "GET", ts.URL+"/metrics", "")
	if !strings.Contains(body, "grocery_purchases_deleted_total 0") {
		t.Errorf("deletes of unknown ids were counted")
	}

	p := create(t, ts.URL, `{"item_name":"Milk","price":3.99}`)
	do(t, "DELETE", ts.URL+"/api/purchases/"+jsonInt(p.ID), "")
	do(t, "DELETE", ts.URL+"/api/purchases/"+jsonInt(p.ID), "")
	_, body = do(t, "GET", ts.URL+"/metrics", "")
	if !strings.Contains(body, "grocery_purchases_deleted_total 1") {
		t.Errorf("want exactly one counted delete")
	}
}

func TestItemHistory(t *testing.T) {
	_, ts := setupServer(t, Options{})
	seed(t, ts.URL)

	var history []purchaseJSON
	_, body := do(t, "GET", ts.URL+"/api/items/mILK/history", "")
	json.Unmarshal([]byte(body), &history)
	if len(history) != 2 || history[0].ItemName != "Milk" || history[0].PurchaseDate != "2024-03-01" {
		t.Errorf("history = %+v", history)
	}

	_, body = do(t, "GET", ts.URL+"/api/items/Butter/history", "")
	if strings.TrimSpace(body) != "[]" {
		t.Errorf("unknown item history = %s, want []", body)
	}
}

func TestSummaryAndOverview(t *testing.T) {
	_, ts := setupServer(t, Options{})
	seed(t, ts.URL)

	var summaries []struct {
		ItemName        string  `json:"item_name"`
		PurchaseCount   int     `json:"purchase_count"`
		MinPrice        string  `json:"min_price"`
		MaxPrice        string  `json:"max_price"`
		AvgPricePerUnit *string `json:"avg_price_per_unit"`
		LastPurchase    string  `json:"last_purchase"`
	}
	_, body := do(t, "GET", ts.URL+"/api/summary", "")
	if err := json.Unmarshal([]byte(body), &summaries); err != nil {
		t.Fatalf("decode summary: %v (%s)", err, body)
	}
	if len(summaries) != 2 || summaries[0].ItemName != "Milk" || summaries[1].ItemName != "Bread" {
		t.Fatalf("summary = %+v", summaries)
	}
	milk := summaries[0]
	if milk.PurchaseCount != 2 || milk.LastPurchase != "2024-03-01" {
		t.Errorf("milk = %+v", milk)
	}
	priceEquals(t, milk.MinPrice, "3.89")
	priceEquals(t, milk.MaxPrice, "4.29")
	if milk.AvgPricePerUnit == nil {
		t.Error("milk avg_price_per_unit is null, want 3.89")
	}
	if summaries[1].AvgPricePerUnit != nil {
		t.Errorf("bread avg_price_per_unit = %v, want null", *summaries[1].AvgPricePerUnit)
	}

	var o struct {
		TotalPurchases int    `json:"total_purchases"`
		UniqueItems    int    `json:"unique_items"`
		TotalSpent     string `json:"total_spent"`
	}
	_, body = do(t, "GET", ts.URL+"/api/overview", "")
	json.Unmarshal([]byte(body), &o)
	if o.TotalPurchases != 3 || o.UniqueItems != 2 {
		t.Errorf("overview = %+v", o)
	}
	priceEquals(t, o.TotalSpent, "10.67")
}

func TestOptions(t *testing.T) {
	_, ts := setupServer(t, Options{})
	_, body := do(t, "GET", ts.URL+"/api/options", "")
	if !strings.Contains(body, `"items":[]`) || !strings.Contains(body, `"stores":[]`) {
		t.Errorf("empty options = %s", body)
	}

	seed(t, ts.URL)
	var opts struct {
		Items  []string `json:"items"`
		Stores []string `json:"stores"`
		From   string   `json:"from"`
		To     string   `json:"to"`
	}
	_, body = do(t, "GET", ts.URL+"/api/options", "")
	json.Unmarshal([]byte(body), &opts)
	if len(opts.Items) != 2 || len(opts.Stores) != 2 || opts.From != "2024-01-05" || opts.To != "2024-03-01" {
		t.Errorf("options = %+v", opts)
	}
}

func TestExportCSV(t *testing.T) {
	_, ts := setupServer(t, Options{})
	seed(t, ts.URL)

	resp, body := do(t, "GET", ts.URL+"/api/export.csv?item=Milk", "")
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "grocery_items_") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "id,item_name,price") {
		t.Errorf("csv = %q", body)
	}
}

func TestReport(t *testing.T) {
	_, ts := setupServer(t, Options{})
	seed(t, ts.URL)

	resp, body := do(t, "GET", ts.URL+"/api/report?item=Milk", "")
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
	for _, want := range []string{"Grocery Price Report", "Milk - 2 purchases", "Milk: price has increased by 10.3%"} {
		if !strings.Contains(body, want) {
			t.Errorf("report missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "Bread") {
		t.Error("report includes unselected item")
	}
}

func TestCharts(t *testing.T) {
	_, ts := setupServer(t, Options{})

	if resp, _ := do(t, "GET", ts.URL+"/api/charts/trend.png", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("empty trend status = %d, want 404", resp.StatusCode)
	}

	seed(t, ts.URL)
	for _, kind := range []string{"trend", "average", "distribution", "stores"} {
		resp, body := do(t, "GET", ts.URL+"/api/charts/"+kind+".png", "")
		if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
			t.Errorf("%s: status %d type %q", kind, resp.StatusCode, resp.Header.Get("Content-Type"))
		}
		if !strings.HasPrefix(body, "\x89PNG") {
			t.Errorf("%s: body is not a PNG", kind)
		}
	}

	for _, path := range []string{"pie.png", "trend.svg"} {
		if resp, _ := do(t, "GET", ts.URL+"/api/charts/"+path, ""); resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestBackups(t *testing.T) {
	_, ts := setupServer(t, Options{BackupPassphrase: "secret"})
	seed(t, ts.URL)

	resp, body := do(t, "POST", ts.URL+"/api/backups", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("backup status = %d (%s)", resp.StatusCode, body)
	}

	var list []struct {
		Name string `json:"name"`
	}
	_, body = do(t, "GET", ts.URL+"/api/backups", "")
	json.Unmarshal([]byte(body), &list)
	if len(list) != 1 || !strings.HasSuffix(list[0].Name, ".db.enc") {
		t.Errorf("backups = %s", body)
	}
}

func TestBackupsWithoutPassphrase(t *testing.T) {
	_, ts := setupServer(t, Options{})
	if resp, _ := do(t, "POST", ts.URL+"/api/backups", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	if _, body := do(t, "GET", ts.URL+"/api/backups", ""); strings.TrimSpace(body) != "[]" {
		t.Errorf("backups = %s, want []", body)
	}
}

func TestMetrics(t *testing.T) {
	_, ts := setupServer(t, Options{})
	create(t, ts.URL, `{"item_name":"Milk","price":3.99}`)

	_, body := do(t, "GET", ts.URL+"/metrics", "")
	for _, want := range []string{
		"grocery_purchases_added_total 1",
		`route="POST /api/purchases"`,
		"grocery_websocket_clients 0",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestWriteLimit(t *testing.T) {
	_, ts := setupServer(t, Options{WriteLimit: 1})
	create(t, ts.URL, `{"item_name":"Milk","price":3.99}`)

	resp, _ := do(t, "POST", ts.URL+"/api/purchases", `{"item_name":"Milk","price":3.99}`)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second write status = %d, want 429", resp.StatusCode)
	}
	if resp, _ := do(t, "GET", ts.URL+"/api/purchases", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("read after limit status = %d, want 200", resp.StatusCode)
	}
}

func TestWebsocketReceivesCreates(t *testing.T) {
	srv, ts := setupServer(t, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	for srv.Hub().Clients() == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("websocket client never registered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	p := create(t, ts.URL, `{"item_name":"Eggs","price":5.10}`)

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev struct {
		Type string `json:"type"`
		ID   int64  `json:"id"`
	}
	json.Unmarshal(data, &ev)
	if ev.Type != "purchase_created" || ev.ID != p.ID {
		t.Errorf("event = %+v, want purchase_created %d", ev, p.ID)
	}

	do(t, "DELETE", ts.URL+"/api/purchases/999", "")
	do(t, "DELETE", ts.URL+"/api/purchases/"+jsonInt(p.ID), "")
	_, data, err = conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	ev.Type, ev.ID = "", 0
	json.Unmarshal(data, &ev)
	if ev.Type != "purchase_deleted" || ev.ID != p.ID {
		t.Errorf("event = %+v, want purchase_deleted %d", ev, p.ID)
	}
}
