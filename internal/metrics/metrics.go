// Package metrics declares the Prometheus collectors of the quiz bot.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "group_quiz"

var (
	// completionLatency measures text generation calls.
	// Labels: model, status (ok, error)
	completionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "completion_seconds",
		Help:      "Text generation latency in seconds",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
	}, []string{"model", "status"})

	searchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "knowledge",
		Name:      "search_seconds",
		Help:      "Knowledge search latency in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"status"})

	// questionsGenerated counts stored questions.
	// Labels: source (model, fallback)
	questionsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "questions_total",
		Help:      "Questions stored by the generation pipeline",
	}, []string{"source"})

	topicCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "topic_collisions_total",
		Help:      "Generated questions accepted despite a repeated topic",
	})

	gamesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "games_started_total",
		Help:      "Games started",
	})

	// workerOutcomes counts background generation results.
	// Labels: outcome (complete, failed)
	workerOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "worker_outcomes_total",
		Help:      "Background generation worker outcomes",
	}, []string{"outcome"})

	// pollWait measures how long readers waited for a question.
	// Labels: result (ready, timeout, failed, canceled)
	pollWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "poll_wait_seconds",
		Help:      "Time readers spent waiting for a question",
		Buckets:   []float64{0, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"result"})

	// inboundEvents counts events accepted by the dispatcher.
	// Labels: kind (message, joined, left)
	inboundEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orchestrator",
		Name:      "events_total",
		Help:      "Inbound group events",
	}, []string{"kind"})

	groupWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "orchestrator",
		Name:      "group_workers",
		Help:      "Groups with a running event worker",
	})

	commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orchestrator",
		Name:      "commands_total",
		Help:      "Parsed group commands",
	}, []string{"command"})

	// messagesSent counts outbound sends.
	// Labels: transport, status (ok, error)
	messagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "messages_sent_total",
		Help:      "Outbound chat messages",
	}, []string{"transport", "status"})

	storeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "errors_total",
		Help:      "Swallowed Store failures",
	}, []string{"op"})
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ObserveCompletion(model string, d time.Duration, err error) {
	completionLatency.WithLabelValues(model, status(err)).Observe(d.Seconds())
}

func ObserveSearch(d time.Duration, err error) {
	searchLatency.WithLabelValues(status(err)).Observe(d.Seconds())
}

func QuestionStored(fallback bool) {
	source := "model"
	if fallback {
		source = "fallback"
	}
	questionsGenerated.WithLabelValues(source).Inc()
}

func TopicCollision() {
	topicCollisions.Inc()
}

func GameStarted() {
	gamesStarted.Inc()
}

func WorkerFinished(failed bool) {
	outcome := "complete"
	if failed {
		outcome = "failed"
	}
	workerOutcomes.WithLabelValues(outcome).Inc()
}

func ObservePoll(result string, d time.Duration) {
	pollWait.WithLabelValues(result).Observe(d.Seconds())
}

func InboundEvent(kind string) {
	inboundEvents.WithLabelValues(kind).Inc()
}

func GroupWorkerStarted() {
	groupWorkers.Inc()
}

func GroupWorkerStopped() {
	groupWorkers.Dec()
}

func Command(name string) {
	commands.WithLabelValues(name).Inc()
}

func MessageSent(transport string, err error) {
	messagesSent.WithLabelValues(transport, status(err)).Inc()
}

func StoreError(op string) {
	storeErrors.WithLabelValues(op).Inc()
}
