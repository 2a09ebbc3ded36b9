package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync metrics
	syncErrorSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "theater_sync_error_seconds",
		Help:    "Absolute difference between reference time and video position, sampled per frame",
		Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.3, 0.5, 1, 2, 5},
	})

	syncDrift = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "theater_sync_drift_seconds",
		Help: "Last signed difference between reference time and video position",
	})

	resyncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "theater_resyncs_total",
		Help: "Total video repositions by reason",
	}, []string{"reason"})

	delayedStartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "theater_delayed_starts_total",
		Help: "Total delayed starts scheduled for negative start offsets",
	})

	playbackAbortsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "theater_playback_aborts_total",
		Help: "Total playback aborts by reason",
	}, []string{"reason"})

	playbackErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "theater_playback_errors_total",
		Help: "Total errors reported by the media backend",
	})

	// Controller state
	controllerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "theater_controller_state",
		Help: "1 for the state the playback controller is currently in",
	}, []string{"state"})

	previewUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "theater_preview_updates_total",
		Help: "Song preview notifications by outcome",
	}, []string{"outcome"})

	// Host loop
	tickFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "theater_tick_failures_total",
		Help: "Recovered panics in per-frame or per-tick work",
	}, []string{"component"})

	scheduledTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "theater_scheduled_tasks",
		Help: "Number of frame-stepped tasks currently running",
	})

	configLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "theater_video_config_loads_total",
		Help: "Video config loads by result",
	}, []string{"result"})
)

// Resync reasons.
const (
	ReasonDrift      = "drift"
	ReasonSeek       = "seek"
	ReasonScene      = "scene"
	ReasonOffset     = "offset"
	ReasonConfig     = "config"
	ReasonSlowSong   = "slow_song"
	ReasonAudioMiss  = "audio_source_missing"
	ReasonBackendErr = "backend_error"
)

// ObserveSyncError records the signed error of one frame.
func ObserveSyncError(errSeconds float64) {
	syncDrift.Set(errSeconds)
	if errSeconds < 0 {
		errSeconds = -errSeconds
	}
	syncErrorSeconds.Observe(errSeconds)
}

func IncrementResync(reason string) {
	resyncsTotal.WithLabelValues(reason).Inc()
}

func IncrementDelayedStart() {
	delayedStartsTotal.Inc()
}

func IncrementPlaybackAbort(reason string) {
	playbackAbortsTotal.WithLabelValues(reason).Inc()
}

func IncrementPlaybackError() {
	playbackErrorsTotal.Inc()
}

// SetControllerState marks state as current and clears every other known state.
func SetControllerState(state string, known []string) {
	for _, s := range known {
		v := 0.0
		if s == state {
			v = 1
		}
		controllerState.WithLabelValues(s).Set(v)
	}
}

func IncrementPreviewUpdate(outcome string) {
	previewUpdatesTotal.WithLabelValues(outcome).Inc()
}

func IncrementTickFailure(component string) {
	tickFailuresTotal.WithLabelValues(component).Inc()
}

// AddScheduledTasks adjusts the running task count. Every scheduler
// reports its own starts and removals.
func AddScheduledTasks(delta int) {
	scheduledTasks.Add(float64(delta))
}

func IncrementConfigLoad(result string) {
	configLoadsTotal.WithLabelValues(result).Inc()
}
