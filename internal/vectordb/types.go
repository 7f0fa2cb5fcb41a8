package vectordb

// Metadata is the per-vector metadata payload. Chroma accepts string, number
// and bool values.
type Metadata map[string]any

// AddRequest inserts vectors into a collection.
type AddRequest struct {
	IDs        []string    `json:"ids"`
	Embeddings [][]float32 `json:"embeddings"`
	Metadatas  []Metadata  `json:"metadatas"`
	Documents  []string    `json:"documents"`
}

// QueryRequest runs a filtered k-NN search.
type QueryRequest struct {
	QueryEmbeddings [][]float32 `json:"query_embeddings"`
	NResults        int         `json:"n_results"`
	Where           Metadata    `json:"where,omitempty"`
	Include         []string    `json:"include"`
}

// QueryResponse carries nested result lists, one inner list per query
// embedding.
type QueryResponse struct {
	IDs       [][]string   `json:"ids"`
	Distances [][]float64  `json:"distances"`
	Metadatas [][]Metadata `json:"metadatas"`
	Documents [][]string   `json:"documents"`
}

// GetRequest scans a collection by metadata filter.
type GetRequest struct {
	Where   Metadata `json:"where,omitempty"`
	Limit   int      `json:"limit,omitempty"`
	Include []string `json:"include"`
}

// GetResponse carries flat result lists.
type GetResponse struct {
	IDs       []string   `json:"ids"`
	Metadatas []Metadata `json:"metadatas"`
	Documents []string   `json:"documents"`
}

// DeleteRequest removes vectors by metadata filter.
type DeleteRequest struct {
	Where Metadata `json:"where,omitempty"`
}

type collectionRequest struct {
	Name        string `json:"name"`
	GetOrCreate bool   `json:"get_or_create"`
}

type collectionResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
