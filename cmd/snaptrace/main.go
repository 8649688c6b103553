package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/CAFxX/httpcompression"
	"github.com/dgraph-io/badger/v4"
	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/snaptrace/snaptrace/internal/bytestream"
	"github.com/snaptrace/snaptrace/internal/errorutil"
	"github.com/snaptrace/snaptrace/internal/httputil"
	"github.com/snaptrace/snaptrace/internal/logutil"
	"github.com/snaptrace/snaptrace/internal/policy"
	"github.com/snaptrace/snaptrace/internal/snapshot"
	"github.com/snaptrace/snaptrace/internal/storageprovider"
	"github.com/snaptrace/snaptrace/internal/storageutil"
	"github.com/snaptrace/snaptrace/internal/tick"
	"github.com/snaptrace/snaptrace/internal/trace"
)

type environment struct {
	config       ServiceConfig
	policyConfig policy.Config

	registry *trace.Registry

	snapshotsWriter *kafka.Writer

	storage        *storage.Client
	badgerDB       *badger.DB
	snapshotsStore storageutil.ObjectHandler
}

var release string

func newEnvironment() (*environment, error) {
	var e environment
	err := cleanenv.ReadEnv(&e.config)
	if err != nil {
		return nil, err
	}
	e.policyConfig, err = policy.LoadConfig()
	if err != nil {
		return nil, err
	}
	e.registry = trace.NewRegistry()

	ctx := context.Background()
	if e.config.SnapshotsBucket != "" {
		e.storage, err = storage.NewClient(ctx)
		if err != nil {
			return nil, err
		}
		e.snapshotsStore = &storageprovider.Gcs{
			BucketHandle: e.storage.Bucket(e.config.SnapshotsBucket),
		}
	} else {
		e.badgerDB, err = badger.Open(badger.DefaultOptions(e.config.BadgerPath))
		if err != nil {
			return nil, err
		}
		e.snapshotsStore = &storageprovider.Badger{DB: e.badgerDB}
	}
	if len(e.config.SnapshotsKafkaBrokers) > 0 {
		e.snapshotsWriter = &kafka.Writer{
			Addr:         kafka.TCP(e.config.SnapshotsKafkaBrokers...),
			Async:        true,
			Balancer:     kafka.CRC32Balancer{},
			BatchSize:    10,
			Compression:  kafka.Lz4,
			ReadTimeout:  3 * time.Second,
			Topic:        e.config.SnapshotsKafkaTopic,
			WriteTimeout: 3 * time.Second,
		}
	}
	return &e, nil
}

func (e *environment) shutdown() {
	if e.storage != nil {
		if err := e.storage.Close(); err != nil {
			sentry.CaptureException(err)
		}
	}
	if e.badgerDB != nil {
		if err := e.badgerDB.Close(); err != nil {
			sentry.CaptureException(err)
		}
	}
	if e.snapshotsWriter != nil {
		if err := e.snapshotsWriter.Close(); err != nil {
			sentry.CaptureException(err)
		}
	}
	sentry.Flush(5 * time.Second)
}

func (e *environment) newRouter() (*httprouter.Router, error) {
	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		return nil, err
	}

	routes := []struct {
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{http.MethodGet, "/health", e.getHealth},
		{http.MethodGet, "/traces", e.getTraces},
		{http.MethodGet, "/traces/:trace_id/snapshot", e.getSnapshot},
		{http.MethodPost, "/traces/:trace_id/persist", e.persistSnapshot},
	}

	router := httprouter.New()

	for _, route := range routes {
		handlerFunc := httputil.DecompressPayload(route.handler)
		handler := compress(handlerFunc)

		router.Handler(route.method, route.path, handler)
	}

	return router, nil
}

func main() {
	logutil.ConfigureLogger()

	env, err := newEnvironment()
	if err != nil {
		log.Fatal().Err(err).Msg("error setting up environment")
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              env.config.SentryDSN,
		EnableTracing:    true,
		Environment:      env.config.Environment,
		Release:          release,
		TracesSampleRate: 1.0,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("can't initialize sentry")
	}

	router, err := env.newRouter()
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("error setting up the router")
	}

	simulatorCtx, stopSimulator := context.WithCancel(context.Background())
	if env.config.SimulateWorkload {
		go env.simulateWorkload(simulatorCtx)
	}

	server := http.Server{
		Addr:    ":" + env.config.Port,
		Handler: sentryhttp.New(sentryhttp.Options{}).Handle(router),
	}

	waitForShutdown := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c

		stopSimulator()

		cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(cctx); err != nil {
			sentry.CaptureException(err)
			log.Err(err).Msg("error shutting down server")
		}

		close(waitForShutdown)
	}()

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		sentry.CaptureException(err)
		log.Err(err).Msg("server failed")
	}

	<-waitForShutdown

	// Shutdown the rest of the environment after the HTTP connections are closed
	env.shutdown()
}

func (e *environment) getHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (e *environment) getTraces(w http.ResponseWriter, r *http.Request) {
	hub := sentry.GetHubFromContext(r.Context())
	b, err := gojson.Marshal(struct {
		TraceIDs []string `json:"trace_ids"`
	}{TraceIDs: e.registry.IDs()})
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

// getSnapshot captures and streams a point-in-time view of one trace. The
// capture tick is fixed once here; everything downstream derives from it.
func (e *environment) getSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)
	ps := httprouter.ParamsFromContext(ctx)
	traceID := ps.ByName("trace_id")
	hub.Scope().SetTag("trace_id", traceID)

	t, err := e.registry.Get(traceID)
	if err != nil {
		if errors.Is(err, errorutil.ErrTraceNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	captureTick := time.Now().UnixNano()
	includeDetail := r.URL.Query().Get("detail") != "false"
	snap, err := snapshot.FromTrace(t, captureTick, includeDetail)
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, err = bytestream.Copy(w, snapshot.ToStream(snap, !t.IsCompleted()))
	if err != nil {
		hub.CaptureException(err)
		log.Err(err).Str("trace_id", traceID).Msg("error streaming snapshot")
	}
}

type snapshotEvent struct {
	TraceID    string  `json:"trace_id"`
	ObjectName string  `json:"object_name"`
	Size       int64   `json:"size"`
	Received   float64 `json:"received"`
}

// persistSnapshot retains a snapshot if the trace clears the persistence
// thresholds, writing the streamed envelope to the snapshot store and
// announcing it on Kafka.
func (e *environment) persistSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)
	ps := httprouter.ParamsFromContext(ctx)
	traceID := ps.ByName("trace_id")
	hub.Scope().SetTag("trace_id", traceID)

	t, err := e.registry.Get(traceID)
	if err != nil {
		if errors.Is(err, errorutil.ErrTraceNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	captureTick := time.Now().UnixNano()
	duration, _ := tick.Normalize(t.StartTick(), t.EndTick(), captureTick)
	summary := policy.Summary{
		Stuck:         t.IsStuck(),
		Error:         t.IsError(),
		Fine:          t.IsFine(),
		UserID:        t.UserID(),
		DurationTicks: duration,
	}
	if !policy.ShouldPersist(summary, e.policyConfig) {
		respondJSON(w, hub, persistResponse{Persisted: false})
		return
	}

	snap, err := snapshot.FromTrace(t, captureTick, true)
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	objectName := fmt.Sprintf("%s/%s", traceID, uuid.New().String())
	size, err := storageutil.CompressedStreamWrite(
		ctx, e.snapshotsStore, objectName, snapshot.ToStream(snap, !t.IsCompleted()))
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if e.snapshotsWriter != nil {
		b, err := gojson.Marshal(snapshotEvent{
			TraceID:    traceID,
			ObjectName: objectName,
			Size:       size,
			Received:   float64(time.Now().Unix()),
		})
		if err != nil {
			hub.CaptureException(err)
		} else if err := e.snapshotsWriter.WriteMessages(ctx, kafka.Message{Value: b}); err != nil {
			hub.CaptureException(err)
			log.Err(err).Str("trace_id", traceID).Msg("error announcing persisted snapshot")
		}
	}

	respondJSON(w, hub, persistResponse{Persisted: true, ObjectName: objectName, Size: size})
}

type persistResponse struct {
	Persisted  bool   `json:"persisted"`
	ObjectName string `json:"object_name,omitempty"`
	Size       int64  `json:"size,omitempty"`
}

func respondJSON(w http.ResponseWriter, hub *sentry.Hub, v interface{}) {
	b, err := gojson.Marshal(v)
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}
