package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Question generation metrics
	QuestionGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "famiq_question_generations_total",
			Help: "Total number of question generation requests",
		},
		[]string{"kind", "status"},
	)

	QuestionGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "famiq_question_generation_duration_seconds",
			Help:    "Question generation pipeline duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"kind"},
	)

	Regenerations = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "famiq_question_regenerations",
			Help:    "Number of novelty-driven regenerations per request",
			Buckets: []float64{0, 1, 2, 3},
		},
		[]string{"kind"},
	)

	SimilarityWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "famiq_similarity_warnings_total",
			Help: "Generations that exhausted novelty attempts",
		},
		[]string{"kind"},
	)

	NoveltyProbeSimilarity = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "famiq_novelty_probe_similarity",
			Help:    "Similarity scores returned by the novelty probe",
			Buckets: []float64{0.1, 0.3, 0.5, 0.7, 0.8, 0.9, 0.95, 1.0},
		},
	)

	// Vector store metrics
	VectorSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "famiq_vector_searches_total",
			Help: "Total vector store operations",
		},
		[]string{"operation", "status"},
	)

	VectorSearchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "famiq_vector_search_latency_seconds",
			Help:    "Vector store operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	VectorRecordsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "famiq_vector_records_stored_total",
			Help: "QA records appended to the vector collection",
		},
	)

	VectorRecordsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "famiq_vector_records_deleted_total",
			Help: "QA records deleted from the vector collection",
		},
	)

	// Embedding metrics
	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "famiq_embedding_requests_total",
			Help: "Embedding requests by model and status",
		},
		[]string{"model", "status"},
	)

	EmbeddingLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "famiq_embedding_latency_seconds",
			Help:    "Embedding request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	// LLM metrics
	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "famiq_llm_requests_total",
			Help: "Chat completion requests by model and status",
		},
		[]string{"model", "status"},
	)

	LLMLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "famiq_llm_latency_seconds",
			Help:    "Chat completion latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"model"},
	)

	// Answer analysis metrics
	AnswerAnalyses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "famiq_answer_analyses_total",
			Help: "Answer analysis requests by outcome",
		},
		[]string{"status"},
	)

	// Summary metrics
	SummaryRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "famiq_summary_requests_total",
			Help: "Period summary requests by period and status",
		},
		[]string{"period", "status"},
	)

	// Circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "famiq_circuit_breaker_state",
			Help: "Current circuit breaker state per outbound dependency",
		},
		[]string{"name"},
	)
)

// RecordVectorSearchMetrics records one vector store operation.
func RecordVectorSearchMetrics(operation, status string, durationSeconds float64) {
	VectorSearches.WithLabelValues(operation, status).Inc()
	if durationSeconds > 0 {
		VectorSearchLatency.WithLabelValues(operation).Observe(durationSeconds)
	}
}

// RecordEmbeddingMetrics records one embedding request.
func RecordEmbeddingMetrics(model, status string, durationSeconds float64) {
	EmbeddingRequests.WithLabelValues(model, status).Inc()
	if durationSeconds > 0 {
		EmbeddingLatency.WithLabelValues(model).Observe(durationSeconds)
	}
}

// RecordLLMMetrics records one chat completion request.
func RecordLLMMetrics(model, status string, durationSeconds float64) {
	LLMRequests.WithLabelValues(model, status).Inc()
	if durationSeconds > 0 {
		LLMLatency.WithLabelValues(model).Observe(durationSeconds)
	}
}

// RecordGenerationMetrics records the outcome of one generation pipeline run.
func RecordGenerationMetrics(kind, status string, durationSeconds float64, regenerations int, warning bool) {
	QuestionGenerations.WithLabelValues(kind, status).Inc()
	QuestionGenerationDuration.WithLabelValues(kind).Observe(durationSeconds)
	Regenerations.WithLabelValues(kind).Observe(float64(regenerations))
	if warning {
		SimilarityWarnings.WithLabelValues(kind).Inc()
	}
}
