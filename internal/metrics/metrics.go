package metrics

import (
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "notakopi"

const maxResponseSamples = 1000

type Metrics struct {
	startTime time.Time
	registry  *prometheus.Registry

	requestsTotal   atomic.Int64
	requestsSuccess atomic.Int64
	requestsFailed  atomic.Int64

	notasProcessed atomic.Int64
	notasFailed    atomic.Int64
	itemsParsed    atomic.Int64
	itemsCreated   atomic.Int64
	itemsMerged    atomic.Int64

	ocrRequests atomic.Int64
	ocrFailures atomic.Int64

	responseTimes     []time.Duration
	responseTimesLock sync.Mutex

	providerRequests map[string]*atomic.Int64
	providerLock     sync.Mutex

	jobRuns  map[string]*atomic.Int64
	jobsLock sync.Mutex

	httpRequests  *prometheus.CounterVec
	httpDuration  prometheus.Histogram
	notas         *prometheus.CounterVec
	items         prometheus.Counter
	parseDuration prometheus.Histogram
	ocrCalls      *prometheus.CounterVec
	ocrDuration   *prometheus.HistogramVec
	inventory     *prometheus.CounterVec
	jobs          *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

// New creates metrics on a private registry, so several instances can live in
// one process (tests, embedded servers).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		startTime:        time.Now(),
		registry:         reg,
		responseTimes:    make([]time.Duration, 0, maxResponseSamples),
		providerRequests: make(map[string]*atomic.Int64),
		jobRuns:          make(map[string]*atomic.Int64),

		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by outcome.",
		}, []string{"outcome"}),
		httpDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		notas: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notas_processed_total",
			Help:      "Notas run through OCR and parsing, by source and outcome.",
		}, []string{"source", "outcome"}),
		items: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_parsed_total",
			Help:      "Line items extracted from notas.",
		}),
		parseDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parse_duration_seconds",
			Help:      "Time spent parsing OCR text.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		ocrCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ocr_requests_total",
			Help:      "OCR extractions by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ocrDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ocr_duration_seconds",
			Help:      "OCR extraction latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"provider"}),
		inventory: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_items_saved_total",
			Help:      "Inventory items written from notas.",
		}, []string{"action"}),
		jobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and status.",
		}, []string{"job", "status"}),
	}

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Time since server start.",
	}, func() float64 {
		return time.Since(m.startTime).Seconds()
	})

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

func (m *Metrics) RecordRequest(success bool) {
	m.requestsTotal.Add(1)
	if success {
		m.requestsSuccess.Add(1)
	} else {
		m.requestsFailed.Add(1)
	}
	m.httpRequests.WithLabelValues(outcome(success)).Inc()
}

func (m *Metrics) RecordResponseTime(d time.Duration) {
	m.httpDuration.Observe(d.Seconds())

	m.responseTimesLock.Lock()
	defer m.responseTimesLock.Unlock()

	m.responseTimes = append(m.responseTimes, d)
	if len(m.responseTimes) > maxResponseSamples {
		m.responseTimes = m.responseTimes[1:]
	}
}

// RecordNota counts one processed nota and the items found in it.
func (m *Metrics) RecordNota(source string, items int, err error) {
	m.notas.WithLabelValues(source, outcome(err == nil)).Inc()
	if err != nil {
		m.notasFailed.Add(1)
		return
	}
	m.notasProcessed.Add(1)
	m.itemsParsed.Add(int64(items))
	m.items.Add(float64(items))
}

func (m *Metrics) RecordParseDuration(d time.Duration) {
	m.parseDuration.Observe(d.Seconds())
}

// RecordOCR satisfies ocr.Recorder.
func (m *Metrics) RecordOCR(provider string, d time.Duration, err error) {
	m.ocrRequests.Add(1)
	if err != nil {
		m.ocrFailures.Add(1)
	}
	m.ocrCalls.WithLabelValues(provider, outcome(err == nil)).Inc()
	m.ocrDuration.WithLabelValues(provider).Observe(d.Seconds())

	m.providerLock.Lock()
	defer m.providerLock.Unlock()
	if m.providerRequests[provider] == nil {
		m.providerRequests[provider] = &atomic.Int64{}
	}
	m.providerRequests[provider].Add(1)
}

func (m *Metrics) RecordInventorySave(created, merged int) {
	m.itemsCreated.Add(int64(created))
	m.itemsMerged.Add(int64(merged))
	m.inventory.WithLabelValues("created").Add(float64(created))
	m.inventory.WithLabelValues("merged").Add(float64(merged))
}

func (m *Metrics) RecordJobRun(job string, err error) {
	m.jobs.WithLabelValues(job, outcome(err == nil)).Inc()

	m.jobsLock.Lock()
	defer m.jobsLock.Unlock()
	if m.jobRuns[job] == nil {
		m.jobRuns[job] = &atomic.Int64{}
	}
	m.jobRuns[job].Add(1)
}

type Snapshot struct {
	Uptime           time.Duration    `json:"uptime"`
	RequestsTotal    int64            `json:"requests_total"`
	RequestsSuccess  int64            `json:"requests_success"`
	RequestsFailed   int64            `json:"requests_failed"`
	NotasProcessed   int64            `json:"notas_processed"`
	NotasFailed      int64            `json:"notas_failed"`
	ItemsParsed      int64            `json:"items_parsed"`
	ItemsCreated     int64            `json:"items_created"`
	ItemsMerged      int64            `json:"items_merged"`
	OCRRequests      int64            `json:"ocr_requests"`
	OCRFailures      int64            `json:"ocr_failures"`
	AvgResponseTime  time.Duration    `json:"avg_response_time"`
	P99ResponseTime  time.Duration    `json:"p99_response_time"`
	ProviderRequests map[string]int64 `json:"provider_requests"`
	JobRuns          map[string]int64 `json:"job_runs"`
	SuccessRate      float64          `json:"success_rate"`
}

func (m *Metrics) Snapshot() *Snapshot {
	s := &Snapshot{
		Uptime:           time.Since(m.startTime),
		RequestsTotal:    m.requestsTotal.Load(),
		RequestsSuccess:  m.requestsSuccess.Load(),
		RequestsFailed:   m.requestsFailed.Load(),
		NotasProcessed:   m.notasProcessed.Load(),
		NotasFailed:      m.notasFailed.Load(),
		ItemsParsed:      m.itemsParsed.Load(),
		ItemsCreated:     m.itemsCreated.Load(),
		ItemsMerged:      m.itemsMerged.Load(),
		OCRRequests:      m.ocrRequests.Load(),
		OCRFailures:      m.ocrFailures.Load(),
		ProviderRequests: make(map[string]int64),
		JobRuns:          make(map[string]int64),
	}

	if s.RequestsTotal > 0 {
		s.SuccessRate = float64(s.RequestsSuccess) / float64(s.RequestsTotal) * 100
	}

	m.responseTimesLock.Lock()
	if len(m.responseTimes) > 0 {
		var total time.Duration
		for _, rt := range m.responseTimes {
			total += rt
		}
		s.AvgResponseTime = total / time.Duration(len(m.responseTimes))

		sorted := slices.Clone(m.responseTimes)
		slices.Sort(sorted)
		p99Index := int(float64(len(sorted)) * 0.99)
		if p99Index >= len(sorted) {
			p99Index = len(sorted) - 1
		}
		s.P99ResponseTime = sorted[p99Index]
	}
	m.responseTimesLock.Unlock()

	m.providerLock.Lock()
	for k, v := range m.providerRequests {
		s.ProviderRequests[k] = v.Load()
	}
	m.providerLock.Unlock()

	m.jobsLock.Lock()
	for k, v := range m.jobRuns {
		s.JobRuns[k] = v.Load()
	}
	m.jobsLock.Unlock()

	return s
}
