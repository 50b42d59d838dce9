// Package retrieval implements the document-retrieval tool the chatbot
// exposes to the model. It runs two similarity searches against the vector
// store — one over short Q&A pairs, one over long-form articles — and
// renders the merged results as a single tool-result string.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hpc-help/sccbot/pkg/vectordb"
)

// ToolName is the function name advertised to the model.
const ToolName = "retrieve_documents"

// previewLength bounds article content in the rendered result; full articles
// would crowd everything else out of the context window.
const previewLength = 500

const (
	docTypeQA      = "QA"
	docTypeArticle = "article"
)

// Document is one retrieved document with its provenance and a relevance
// score derived as 1 - distance (higher = more relevant).
type Document struct {
	Content   string  `json:"content"`
	Source    string  `json:"source"`
	Title     string  `json:"title,omitempty"`
	Relevance float64 `json:"relevance"`
}

// Result holds both sub-kinds of retrieved documents. An empty list means
// the store had no matches for that kind; it is not an error.
type Result struct {
	QADocuments      []Document `json:"qa_documents"`
	ArticleDocuments []Document `json:"article_documents"`
}

// Config bounds the two sub-queries. An explicit n_results argument from the
// model overrides both.
type Config struct {
	QAResults      int // default 2
	ArticleResults int // default 2
}

// Tool retrieves SCC documentation from a vector store.
type Tool struct {
	store vectordb.Store
	cfg   Config

	// OnRetrieve, when set, observes every successful retrieval. The
	// composition root uses it to record retrievals in the event log; the
	// context carries any request-scoped identifiers it needs.
	OnRetrieve func(ctx context.Context, query string, res Result)
}

// New creates a retrieval tool over the given store, applying defaults for
// zero config values.
func New(store vectordb.Store, cfg Config) *Tool {
	if cfg.QAResults <= 0 {
		cfg.QAResults = 2
	}
	if cfg.ArticleResults <= 0 {
		cfg.ArticleResults = 2
	}

	return &Tool{store: store, cfg: cfg}
}

type arguments struct {
	Query    string `json:"query"`
	NResults int    `json:"n_results"`
}

// Execute parses the tool arguments, runs the hybrid retrieval, and returns
// the rendered result. A store failure is reported as an error-describing
// string with a nil error so the conversation continues with a degraded
// tool result.
func (t *Tool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args arguments
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("retrieval: parse arguments: %w", err)
	}
	if args.Query == "" {
		return "", fmt.Errorf("retrieval: missing required argument: query")
	}

	nQA, nArticle := t.cfg.QAResults, t.cfg.ArticleResults
	if args.NResults > 0 {
		nQA, nArticle = args.NResults, args.NResults
	}

	res, err := t.retrieve(ctx, args.Query, nQA, nArticle)
	if err != nil {
		return fmt.Sprintf("Error retrieving documents: %s", err), nil
	}

	if t.OnRetrieve != nil {
		t.OnRetrieve(ctx, args.Query, res)
	}

	return Format(res), nil
}

// retrieve runs the two filtered similarity searches.
func (t *Tool) retrieve(ctx context.Context, query string, nQA, nArticle int) (Result, error) {
	qa, err := t.store.Query(ctx, query, nQA, vectordb.Filter{"doc_type": docTypeQA})
	if err != nil {
		return Result{}, fmt.Errorf("search Q&A pairs: %w", err)
	}

	articles, err := t.store.Query(ctx, query, nArticle, vectordb.Filter{"doc_type": docTypeArticle})
	if err != nil {
		return Result{}, fmt.Errorf("search articles: %w", err)
	}

	return Result{
		QADocuments:      toDocuments(qa),
		ArticleDocuments: toDocuments(articles),
	}, nil
}

func toDocuments(qr vectordb.QueryResult) []Document {
	docs := make([]Document, 0, len(qr.Documents))
	for i, d := range qr.Documents {
		doc := Document{Content: d, Source: "Unknown"}

		if i < len(qr.Metadatas) {
			if s, ok := qr.Metadatas[i]["source"].(string); ok && s != "" {
				doc.Source = s
			}
			if title, ok := qr.Metadatas[i]["title"].(string); ok {
				doc.Title = title
			}
		}

		if i < len(qr.Distances) {
			doc.Relevance = 1 - qr.Distances[i]
		}

		docs = append(docs, doc)
	}

	return docs
}

// Format renders a Result as the single string handed back to the model:
// numbered blocks with relevance, provenance, and content, with article
// content truncated to a preview.
func Format(res Result) string {
	var b strings.Builder

	b.WriteString("Q&A documents:\n")
	if len(res.QADocuments) == 0 {
		b.WriteString("No relevant Q&A pairs found for your query.\n")
	}
	for i, doc := range res.QADocuments {
		fmt.Fprintf(&b, "Result %d (relevance: %.3f):\nSource: %s\n%s\n", i+1, doc.Relevance, doc.Source, doc.Content)
	}

	b.WriteString("\nArticles:\n")
	if len(res.ArticleDocuments) == 0 {
		b.WriteString("No relevant articles found for your query.\n")
	}
	for i, doc := range res.ArticleDocuments {
		title := doc.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&b, "Result %d (relevance: %.3f):\nTitle: %s\nSource: %s\nContent: %s\n",
			i+1, doc.Relevance, title, doc.Source, preview(doc.Content))
	}

	return b.String()
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength]) + "..."
}
