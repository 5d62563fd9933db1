package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"idaetl/internal/datasource/httpds"
)

// datasetJSON carries fields the client does not know about; they must be
// ignored, the portal adds fields without notice.
const datasetJSON = `{
  "id": "63a9c9f6-9991-48b4-a072-ce22765652e6",
  "titulo": "Índice de Desempenho no Atendimento",
  "organizacao": {"nome": "Anatel"},
  "recursos": [
    {"id": "r1", "titulo": "IDA SMP 2017", "link": "http://example.org/files/SMP2017.xlsx", "formato": "XLSX", "descricao": "planilha"},
    {"id": "r2", "titulo": "IDA STFC 2018", "link": "http://example.org/files/STFC2018.xlsx", "formato": ".xlsx"},
    {"id": "r3", "titulo": "Dicionário de dados", "link": "http://example.org/files/dicionario.pdf", "formato": "PDF"},
    {"id": "r4", "titulo": "IDA SCM 2019", "link": "", "formato": "XLSX"},
    {"id": "r5", "titulo": "IDA SCM 2019", "link": "http://example.org/files/SCM2019.csv", "formato": "CSV"}
  ]
}`

func newTestClient(t *testing.T, apiKey string) (*Client, *http.ServeMux, string) {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	hc := httpds.NewClient(httpds.Config{MaxRetries: 0})
	return NewClient(hc, Config{BaseURL: srv.URL, DatasetID: "dset", APIKey: apiKey}), mux, srv.URL
}

func TestListParsesResources(t *testing.T) {
	t.Parallel()

	c, mux, _ := newTestClient(t, "secret")
	var gotKey string
	mux.HandleFunc("/conjuntos-dados/dset", func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("chave-api-dados-abertos")
		w.Write([]byte(datasetJSON))
	})

	rs, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if gotKey != "secret" {
		t.Errorf("api key header = %q", gotKey)
	}

	// r3 has no interpretable service, r4 has no link.
	if len(rs) != 3 {
		t.Fatalf("got %d resources, want 3: %+v", len(rs), rs)
	}

	first := rs[0]
	if first.Service != "SMP" || first.Year != 2017 {
		t.Errorf("first = %s/%d, want SMP/2017", first.Service, first.Year)
	}
	if first.Format != "xlsx" {
		t.Errorf("format = %q, want xlsx", first.Format)
	}
	if first.Filename != "SMP2017.xlsx" {
		t.Errorf("filename = %q, want SMP2017.xlsx", first.Filename)
	}
	if rs[1].Format != "xlsx" {
		t.Errorf("dotted format = %q, want xlsx", rs[1].Format)
	}
	if rs[2].Service != "SCM" || rs[2].Format != "csv" {
		t.Errorf("third = %s/%s, want SCM/csv", rs[2].Service, rs[2].Format)
	}
}

func TestListErrorStatus(t *testing.T) {
	t.Parallel()

	c, mux, _ := newTestClient(t, "")
	mux.HandleFunc("/conjuntos-dados/dset", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	if _, err := c.List(context.Background()); err == nil {
		t.Fatal("List succeeded on 403")
	}
}

func TestFilter(t *testing.T) {
	t.Parallel()

	rs := []Resource{
		{Service: "SMP", Year: 2016},
		{Service: "SMP", Year: 2017},
		{Service: "STFC", Year: 2018},
		{Service: "SCM", Year: 2019},
		{Service: "SMP", Year: 2020},
	}

	got := Filter(rs, []string{"smp", "STFC"}, 2017, 2019)
	if len(got) != 2 {
		t.Fatalf("got %d resources, want 2: %+v", len(got), got)
	}
	if got[0].Year != 2017 || got[1].Service != "STFC" {
		t.Errorf("unexpected selection: %+v", got)
	}

	// Empty axes keep everything.
	if got := Filter(rs, nil, 0, 0); len(got) != len(rs) {
		t.Errorf("empty filter dropped resources: %d", len(got))
	}
}

func TestFetch(t *testing.T) {
	t.Parallel()

	c, mux, srvURL := newTestClient(t, "")
	mux.HandleFunc("/files/data.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("a;b\n1;2\n"))
	})
	mux.HandleFunc("/files/missing.csv", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	rdr, err := c.Fetch(context.Background(), Resource{URL: srvURL + "/files/data.csv", Filename: "data.csv"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	buf := make([]byte, 4)
	if _, err := rdr.Read(buf); err != nil || string(buf) != "a;b\n" {
		t.Fatalf("read = %q, %v", buf, err)
	}

	if _, err := c.Fetch(context.Background(), Resource{URL: srvURL + "/files/missing.csv", Filename: "missing.csv"}); err == nil {
		t.Fatal("Fetch succeeded on 404")
	}
}
