//go:build ignore

// Package main generates a synthetic chunks JSONL file for load testing.
// Usage: go run scripts/generate-chunks.go -chunks 5000 -output chunks.jsonl
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
)

var (
	numChunks = flag.Int("chunks", 5000, "Number of chunks to generate")
	output    = flag.String("output", "chunks.jsonl", "Output JSONL path")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var goTemplate = `// %s handles %s for the %s subsystem.
func (s *%s) %s(ctx context.Context, req *%sRequest) (*%sResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s request: %%w", err)
	}
	resp, err := s.store.%s(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return resp, nil
}`

var tsTemplate = `export async function %s(req: %sRequest): Promise<%sResponse> {
  const validated = %sSchema.parse(req);
  const result = await this.client.%s(validated);
  return result;
}`

var pyTemplate = `def %s(self, request: %sRequest) -> %sResponse:
    """%s the %s and return the result."""
    validated = self._validate(request)
    return self._store.%s(validated)`

var (
	domains = []string{"auth", "billing", "search", "cache", "queue", "user", "order", "payment", "session", "config"}
	verbs   = []string{"Create", "Update", "Delete", "Fetch", "List", "Validate", "Process", "Sync", "Resolve", "Publish"}
	nouns   = []string{"Token", "Invoice", "Index", "Entry", "Job", "Profile", "Item", "Charge", "Record", "Setting"}
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	f, err := os.Create(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create output: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i := 0; i < *numChunks; i++ {
		if err := enc.Encode(generateChunk(rng, i)); err != nil {
			fmt.Fprintf(os.Stderr, "write chunk %d: %v\n", i, err)
			os.Exit(1)
		}
	}
	fmt.Printf("wrote %d chunks to %s\n", *numChunks, *output)
}

type chunkRecord struct {
	DocID     string   `json:"doc_id"`
	Path      string   `json:"path"`
	Language  string   `json:"language"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	Content   string   `json:"content"`
	Symbols   []string `json:"symbols"`
}

func generateChunk(rng *rand.Rand, index int) chunkRecord {
	domain := domains[rng.Intn(len(domains))]
	verb := verbs[rng.Intn(len(verbs))]
	noun := nouns[rng.Intn(len(nouns))]
	symbol := verb + noun
	service := title(domain) + "Service"

	var (
		path     string
		language string
		content  string
	)
	switch index % 3 {
	case 0:
		language = "go"
		path = fmt.Sprintf("internal/%s/%s_%d.go", domain, lower(noun), index)
		content = fmt.Sprintf(goTemplate, symbol, lower(verb), domain,
			service, symbol, noun, noun, lower(noun), verb)
	case 1:
		language = "typescript"
		path = fmt.Sprintf("src/%s/%s_%d.ts", domain, lower(noun), index)
		content = fmt.Sprintf(tsTemplate, lower(symbol), noun, noun, noun, lower(verb))
	default:
		language = "python"
		path = fmt.Sprintf("%s/%s_%d.py", domain, lower(noun), index)
		content = fmt.Sprintf(pyTemplate, snake(verb, noun), noun, noun, verb, lower(noun), lower(verb))
	}

	start := 1 + rng.Intn(400)
	return chunkRecord{
		DocID:     fmt.Sprintf("%s-%d", domain, index),
		Path:      path,
		Language:  language,
		StartLine: start,
		EndLine:   start + 8 + rng.Intn(40),
		Content:   content,
		Symbols:   []string{symbol},
	}
}

func title(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

func lower(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'A'+'a') + s[1:]
}

func snake(verb, noun string) string {
	return lower(verb) + "_" + lower(noun)
}
