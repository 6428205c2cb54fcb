package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PostsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ephemera_posts_created_total",
		Help: "Posts accepted and stored.",
	})

	PostsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ephemera_posts_rejected_total",
		Help: "Create or delete signals rejected, by error code.",
	}, []string{"code"})

	PostsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ephemera_posts_deleted_total",
		Help: "Posts removed by their author.",
	})

	AttachmentsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ephemera_attachments_stored_total",
		Help: "Attachments written to content-addressed storage, by MIME type.",
	}, []string{"type"})

	AttachmentBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ephemera_attachment_bytes_total",
		Help: "Bytes written to attachment storage.",
	})

	OrphansReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ephemera_orphans_reclaimed_total",
		Help: "Unreferenced attachments removed by the orphan sweep.",
	})

	StrayFilesReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ephemera_stray_files_reclaimed_total",
		Help: "Attachment files without metadata removed by the orphan sweep.",
	})

	FeedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ephemera_feed_clients",
		Help: "Connected live feed websocket clients.",
	})

	tableCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ephemera_table_count",
		Help: "Row count for a table.",
	}, []string{"table"})
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
