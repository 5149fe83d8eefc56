package http

import (
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/kompanion/internal/auth"
	"github.com/mrlokans/kompanion/internal/stats"
)

// MethodPropfind is the WebDAV listing method KOReader issues before
// syncing its statistics database.
const MethodPropfind = "PROPFIND"

// DefaultMaxStatisticsUploadBytes bounds a single statistics upload.
const DefaultMaxStatisticsUploadBytes int64 = 256 << 20

type davMultistatus struct {
	XMLName   xml.Name      `xml:"D:multistatus"`
	Namespace string        `xml:"xmlns:D,attr"`
	Responses []davResponse `xml:"D:response"`
}

type davResponse struct {
	Href     string      `xml:"D:href"`
	Propstat davPropstat `xml:"D:propstat"`
}

type davPropstat struct {
	Prop   davProp `xml:"D:prop"`
	Status string  `xml:"D:status"`
}

type davProp struct {
	DisplayName  string           `xml:"D:displayname,omitempty"`
	ResourceType *davResourceType `xml:"D:resourcetype"`
	ContentType  string           `xml:"D:getcontenttype,omitempty"`
}

type davResourceType struct {
	Collection *struct{} `xml:"D:collection"`
}

type WebDAVController struct {
	stats          StatisticsStore
	maxUploadBytes int64
}

func NewWebDAVController(store StatisticsStore, maxUploadBytes int64) *WebDAVController {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxStatisticsUploadBytes
	}
	return &WebDAVController{stats: store, maxUploadBytes: maxUploadBytes}
}

// PROPFIND /
//
// The blob contract carries no modification time, so getlastmodified is
// not reported.
func (wc *WebDAVController) Propfind(c *gin.Context) {
	identity := auth.MustGetIdentity(c)

	exists, err := wc.stats.Exists(c.Request.Context(), identity.Principal())
	if err != nil {
		respondInternalError(c, err, "stat statistics")
		return
	}

	const ok = "HTTP/1.1 200 OK"
	result := davMultistatus{
		Namespace: "DAV:",
		Responses: []davResponse{{
			Href: "/",
			Propstat: davPropstat{
				Prop:   davProp{ResourceType: &davResourceType{Collection: &struct{}{}}},
				Status: ok,
			},
		}},
	}
	if exists {
		result.Responses = append(result.Responses, davResponse{
			Href: "/" + stats.FileName,
			Propstat: davPropstat{
				Prop: davProp{
					DisplayName:  stats.FileName,
					ResourceType: &davResourceType{},
					ContentType:  "application/octet-stream",
				},
				Status: ok,
			},
		})
	}

	body, err := xml.Marshal(result)
	if err != nil {
		respondInternalError(c, err, "encode multistatus")
		return
	}
	c.Data(http.StatusMultiStatus, "application/xml; charset=utf-8", append([]byte(xml.Header), body...))
}

// PUT /statistics.sqlite3
func (wc *WebDAVController) Upload(c *gin.Context) {
	identity := auth.MustGetIdentity(c)

	body := http.MaxBytesReader(c.Writer, c.Request.Body, wc.maxUploadBytes)
	defer body.Close()

	if err := wc.stats.Upload(c.Request.Context(), identity.Principal(), body); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respondError(c, http.StatusRequestEntityTooLarge,
				"statistics upload exceeds "+strconv.FormatInt(wc.maxUploadBytes, 10)+" bytes")
		case errors.Is(err, stats.ErrEmptyUpload):
			respondBadRequest(c, err.Error())
		default:
			respondInternalError(c, err, "upload statistics")
		}
		return
	}

	c.Status(http.StatusCreated)
}

// GET /statistics.sqlite3
func (wc *WebDAVController) Download(c *gin.Context) {
	identity := auth.MustGetIdentity(c)

	rc, err := wc.stats.Download(c.Request.Context(), identity.Principal())
	if err != nil {
		if errors.Is(err, stats.ErrNoStatistics) {
			respondNotFound(c, "statistics")
			return
		}
		respondInternalError(c, err, "download statistics")
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		c.Error(err)
	}
}
