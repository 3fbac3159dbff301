// Package search provides full-text lookup over imported tenants using
// Bleve.
package search

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/header"
	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/normalizer"
	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/service"
)

// ErrClosed is returned by searches on a closed index.
var ErrClosed = errors.New("tenant index is closed")

type document struct {
	Name     string `json:"name"`
	Document string `json:"document"`
	City     string `json:"city"`
	Address  string `json:"address"`
}

// Hit is a tenant matching a query.
type Hit struct {
	Tenant service.Tenant
	Score  float64

	pos int
}

// TenantIndex is an in-memory index over a batch of tenants. Names,
// cities and addresses are matched without accents and with one typo of
// tolerance.
type TenantIndex struct {
	mu      sync.RWMutex
	index   bleve.Index
	tenants []service.Tenant
}

// NewTenantIndex creates an empty in-memory index.
func NewTenantIndex() (*TenantIndex, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	return &TenantIndex{index: index}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = simple.Name

	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("name", text)
	doc.AddFieldMappingsAt("city", text)
	doc.AddFieldMappingsAt("address", text)
	doc.AddFieldMappingsAt("document", exact)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = simple.Name
	return m
}

// fold lowercases and strips diacritics so "João" and "joao" index alike.
func fold(s string) string {
	return strings.ToLower(header.Transliterate(s))
}

// Index adds tenants to the index. Tenants are kept in insertion order and
// may share an ID.
func (ti *TenantIndex) Index(tenants []service.Tenant) error {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	if ti.index == nil {
		return ErrClosed
	}

	batch := ti.index.NewBatch()
	for i, t := range tenants {
		id := strconv.Itoa(len(ti.tenants) + i)
		doc := document{
			Name:     fold(t.Insured.Name),
			Document: normalizer.Digits(t.Insured.Document),
			City:     fold(t.Risk.City),
			Address:  fold(t.Risk.Address),
		}
		if err := batch.Index(id, doc); err != nil {
			return fmt.Errorf("failed to index tenant %s: %w", t.ID, err)
		}
	}
	if err := ti.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch index: %w", err)
	}

	ti.tenants = append(ti.tenants, tenants...)
	return nil
}

// Search matches text against tenant names, with cities and addresses
// weighted lower. A blank query yields no hits.
func (ti *TenantIndex) Search(text string, limit int) ([]Hit, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return ti.Lookup("", text, limit)
}

// ByDocument returns the tenants whose CPF/CNPJ digits contain the digits
// of doc, masked or not, in insertion order.
func (ti *TenantIndex) ByDocument(doc string) ([]Hit, error) {
	if strings.TrimSpace(doc) == "" {
		return nil, nil
	}
	return ti.Lookup(doc, "", 0)
}

// Lookup combines a document fragment and a text query; a tenant must match
// both when both are given. With text the hits are ranked by score (at most
// limit of them), otherwise they keep insertion order. With neither every
// tenant is returned. A document fragment without digits matches nothing.
func (ti *TenantIndex) Lookup(doc, text string, limit int) ([]Hit, error) {
	var queries []query.Query

	if strings.TrimSpace(doc) != "" {
		digits := normalizer.Digits(doc)
		if digits == "" {
			return []Hit{}, nil
		}
		q := bleve.NewWildcardQuery("*" + digits + "*")
		q.SetField("document")
		queries = append(queries, q)
	}

	text = strings.TrimSpace(fold(text))
	if text != "" {
		if limit <= 0 {
			limit = 10
		}
		queries = append(queries, textQuery(text))
	} else {
		limit = 0
	}

	var q query.Query
	switch len(queries) {
	case 0:
		q = bleve.NewMatchAllQuery()
	case 1:
		q = queries[0]
	default:
		q = bleve.NewConjunctionQuery(queries...)
	}

	hits, err := ti.search(q, limit)
	if err != nil {
		return nil, err
	}
	if text == "" {
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	}
	return hits, nil
}

func textQuery(text string) query.Query {
	name := bleve.NewMatchQuery(text)
	name.SetField("name")
	name.SetFuzziness(1)
	name.SetBoost(3)

	city := bleve.NewMatchQuery(text)
	city.SetField("city")
	city.SetFuzziness(1)

	address := bleve.NewMatchQuery(text)
	address.SetField("address")

	return bleve.NewDisjunctionQuery(name, city, address)
}

// search runs q and maps hits back to tenants. A limit of zero returns
// every match.
func (ti *TenantIndex) search(q query.Query, limit int) ([]Hit, error) {
	ti.mu.RLock()
	defer ti.mu.RUnlock()

	if ti.index == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = len(ti.tenants) + 1
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	res, err := ti.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		i, err := strconv.Atoi(h.ID)
		if err != nil || i < 0 || i >= len(ti.tenants) {
			continue
		}
		hits = append(hits, Hit{Tenant: ti.tenants[i], Score: h.Score, pos: i})
	}
	return hits, nil
}

// Len returns the number of indexed tenants.
func (ti *TenantIndex) Len() int {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return len(ti.tenants)
}

// Close releases the index.
func (ti *TenantIndex) Close() error {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	if ti.index == nil {
		return nil
	}
	err := ti.index.Close()
	ti.index = nil
	return err
}
