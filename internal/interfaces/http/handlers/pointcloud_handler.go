package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/embedscope/internal/application/embedding"
	"github.com/turtacn/embedscope/internal/domain/metric"
	"github.com/turtacn/embedscope/internal/domain/pointcloud"
	"github.com/turtacn/embedscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/embedscope/pkg/errors"
	embtypes "github.com/turtacn/embedscope/pkg/types/embedding"
)

// PointCloudHandler exposes one session's store projections and accepts the
// interactions that drive it.
type PointCloudHandler struct {
	session  *embedding.Session
	exporter embedding.SnapshotStore
	// fetchCtx outlives individual requests: a fetch started by a request
	// keeps running after the response is written.
	fetchCtx context.Context
	now      func() time.Time
	logger   logging.Logger
}

// NewPointCloudHandler creates a handler.  exporter may be nil, in which case
// POST /export answers 503.
func NewPointCloudHandler(fetchCtx context.Context, session *embedding.Session, exporter embedding.SnapshotStore, logger logging.Logger) *PointCloudHandler {
	return &PointCloudHandler{
		session:  session,
		exporter: exporter,
		fetchCtx: fetchCtx,
		now:      time.Now,
		logger:   logging.OrNop(logger).Named("pointcloud_handler"),
	}
}

// RegisterRoutes mounts the point cloud routes on r.
func (h *PointCloudHandler) RegisterRoutes(r gin.IRouter) {
	pc := r.Group("/pointcloud")
	pc.GET("", h.GetPointCloud)
	pc.GET("/clusters", h.ListClusters)
	pc.POST("/clusters/:id/click", h.ClickCluster)
	pc.PUT("/clusters/:id/highlight", h.HighlightCluster)
	pc.DELETE("/clusters/:id/highlight", h.ClearHighlight)
	pc.PUT("/tab", h.SetTab)
	pc.PUT("/parameters", h.SetParameters)
	pc.PUT("/metric", h.SetMetric)
	pc.PUT("/timestamp", h.SetTimestamp)
	pc.DELETE("/error", h.DismissError)
	pc.GET("/fetch", h.GetFetchState)
	pc.POST("/fetch", h.Refetch)
	pc.POST("/export", h.Export)
}

// SelectionResponse is returned by interaction endpoints.
type SelectionResponse struct {
	Version   uint64                    `json:"version"`
	Selection pointcloud.SelectionState `json:"selection"`
}

// FetchResponse reports whether a request changed the query.  Generation is
// set only when a new fetch was issued.
type FetchResponse struct {
	Issued     bool   `json:"issued"`
	Generation uint64 `json:"generation,omitempty"`
}

// FetchStateResponse is returned by GET /fetch.
type FetchStateResponse struct {
	State embedding.LifecycleState `json:"state"`
	Query embtypes.QueryParams     `json:"query"`
}

type ClusterListResponse struct {
	Sort     pointcloud.ClusterSort   `json:"sort"`
	Clusters []pointcloud.ClusterView `json:"clusters"`
}

type SetTabRequest struct {
	ConfigTab *bool `json:"config_tab"`
}

// SetParametersRequest changes any subset of the query parameters.
type SetParametersRequest struct {
	EmbeddingID *string                       `json:"embedding_id"`
	UMAP        *pointcloud.UMAPParameters    `json:"umap"`
	HDBSCAN     *pointcloud.HDBSCANParameters `json:"hdbscan"`
}

// SetTimestampRequest moves the window end; a null timestamp restores the
// primary dataset end.
type SetTimestampRequest struct {
	Timestamp *time.Time `json:"timestamp"`
}

// GetPointCloud handles GET /api/v1/pointcloud.
func (h *PointCloudHandler) GetPointCloud(c *gin.Context) {
	doc, err := h.session.Document(h.now())
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// ListClusters handles GET /api/v1/pointcloud/clusters?sort=&dir=.
func (h *PointCloudHandler) ListClusters(c *gin.Context) {
	by, err := pointcloud.ParseClusterSort(c.Query("sort"), c.Query("dir"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	views := h.session.Store().Snapshot().ClusterViews()
	c.JSON(http.StatusOK, ClusterListResponse{Sort: by, Clusters: pointcloud.SortClusterViews(views, by)})
}

// ClickCluster handles POST /api/v1/pointcloud/clusters/:id/click.
func (h *PointCloudHandler) ClickCluster(c *gin.Context) {
	snap, err := h.session.Selection().ClusterClick(c.Param("id"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, selectionResponse(snap))
}

// HighlightCluster handles PUT /api/v1/pointcloud/clusters/:id/highlight.
func (h *PointCloudHandler) HighlightCluster(c *gin.Context) {
	snap, err := h.session.Selection().ClusterHoverEnter(c.Param("id"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, selectionResponse(snap))
}

// ClearHighlight handles DELETE /api/v1/pointcloud/clusters/:id/highlight.
// Leaving any cluster clears the highlight.
func (h *PointCloudHandler) ClearHighlight(c *gin.Context) {
	c.JSON(http.StatusOK, selectionResponse(h.session.Selection().ClusterHoverLeave()))
}

// SetTab handles PUT /api/v1/pointcloud/tab.
func (h *PointCloudHandler) SetTab(c *gin.Context) {
	var req SetTabRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.ConfigTab == nil {
		writeAppError(c, errors.InvalidParam("config_tab is required"))
		return
	}
	c.JSON(http.StatusOK, selectionResponse(h.session.Selection().ConfigTabActivated(*req.ConfigTab)))
}

// SetParameters handles PUT /api/v1/pointcloud/parameters.
func (h *PointCloudHandler) SetParameters(c *gin.Context) {
	var req SetParametersRequest
	if !bindJSON(c, &req) {
		return
	}
	handle, err := h.session.Update(h.fetchCtx, func(p *embedding.Parameters) {
		if req.EmbeddingID != nil {
			p.EmbeddingID = *req.EmbeddingID
		}
		if req.UMAP != nil {
			p.UMAP = *req.UMAP
		}
		if req.HDBSCAN != nil {
			p.HDBSCAN = *req.HDBSCAN
		}
	})
	h.writeFetch(c, handle, err)
}

// SetMetric handles PUT /api/v1/pointcloud/metric.
func (h *PointCloudHandler) SetMetric(c *gin.Context) {
	var spec metric.Spec
	if !bindJSON(c, &spec) {
		return
	}
	def, err := spec.Definition()
	if err != nil {
		writeAppError(c, err)
		return
	}
	handle, err := h.session.SetMetric(h.fetchCtx, def)
	h.writeFetch(c, handle, err)
}

// SetTimestamp handles PUT /api/v1/pointcloud/timestamp.
func (h *PointCloudHandler) SetTimestamp(c *gin.Context) {
	var req SetTimestampRequest
	if !bindJSON(c, &req) {
		return
	}
	handle, err := h.session.SetSelectedTimestamp(h.fetchCtx, req.Timestamp)
	h.writeFetch(c, handle, err)
}

// DismissError handles DELETE /api/v1/pointcloud/error.
func (h *PointCloudHandler) DismissError(c *gin.Context) {
	h.session.Store().SetErrorMessage(nil)
	c.Status(http.StatusNoContent)
}

// GetFetchState handles GET /api/v1/pointcloud/fetch.
func (h *PointCloudHandler) GetFetchState(c *gin.Context) {
	c.JSON(http.StatusOK, FetchStateResponse{State: h.session.State(), Query: h.session.QueryParams()})
}

// Refetch handles POST /api/v1/pointcloud/fetch.  The current data is kept
// until the new result arrives.
func (h *PointCloudHandler) Refetch(c *gin.Context) {
	h.writeFetch(c, h.session.Refetch(h.fetchCtx), nil)
}

// Export handles POST /api/v1/pointcloud/export.
func (h *PointCloudHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		writeAppError(c, errors.New(errors.ErrCodeServiceUnavailable, "snapshot export is not configured"))
		return
	}
	loc, err := embedding.ExportSnapshot(c.Request.Context(), h.session, h.exporter, h.now())
	if err != nil {
		h.logger.Warn("snapshot export failed", logging.Err(err))
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, loc)
}

func (h *PointCloudHandler) writeFetch(c *gin.Context, handle *embedding.Handle, err error) {
	if err != nil {
		writeAppError(c, err)
		return
	}
	if handle == nil {
		c.JSON(http.StatusOK, FetchResponse{})
		return
	}
	c.JSON(http.StatusAccepted, FetchResponse{Issued: true, Generation: handle.Generation()})
}

func selectionResponse(snap pointcloud.Snapshot) SelectionResponse {
	return SelectionResponse{Version: snap.Version, Selection: snap.Selection}
}
