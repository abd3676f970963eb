package server

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/expvar"
	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"

	"github.com/johbar/ocr-service/internal/command"
	"github.com/johbar/ocr-service/internal/imageparser"
	"github.com/johbar/ocr-service/pkg/tesswrap"
)

// Router returns the HTTP API:
//
//	GET  /langs              installed languages
//	POST /langs/:lang        install (or reinstall) a language
//	POST /langs              install missing languages, body {"langs": [...]}
//	POST /recognize          recognize the image in the body (raw or multipart field "image")
//	POST /command            execute a chat command, multipart fields "text" and "image"
//	GET  /debug/vars         expvar, including download counters
func (s *Service) Router() *gin.Engine {
	router := gin.New()
	router.Use(sloggin.New(s.log), gin.Recovery())
	router.GET("/langs", s.ListLangs)
	router.POST("/langs/:lang", s.InstallLang)
	router.POST("/langs", s.InstallLangs)
	router.POST("/recognize", s.RecognizeBody)
	router.POST("/command", s.Command)
	router.GET("/debug/vars", expvar.Handler())
	return router
}

func (s *Service) ListLangs(c *gin.Context) {
	c.JSON(http.StatusOK, s.installed())
}

func (s *Service) InstallLang(c *gin.Context) {
	if err := s.install(c.Request.Context(), []string{c.Param("lang")}); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, s.installed())
}

func (s *Service) InstallLangs(c *gin.Context) {
	var req InstallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err := s.install(c.Request.Context(), req.Langs); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, s.installed())
}

// RecognizeBody responds with the recognized text. With query param debug=true
// the full result is returned as JSON.
// Query params: lang (codes separated by '+' or ','), psm (page segmentation mode),
// dehyphenate (join words hyphenated at line ends).
func (s *Service) RecognizeBody(c *gin.Context) {
	opts := tesswrap.Options{}
	if psm := c.Query("psm"); psm != "" {
		mode, err := strconv.Atoi(psm)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "invalid psm: " + psm})
			return
		}
		opts.PageSegMode = tesswrap.PSM(mode)
	}
	img, err := s.imageFromRequest(c)
	if err != nil {
		s.abort(c, err)
		return
	}
	langs := command.SplitLangs(c.Query("lang"))
	dehyphenate, _ := strconv.ParseBool(c.Query("dehyphenate"))
	res, err := s.recognize(c.Request.Context(), langs, img, opts, dehyphenate)
	if err != nil {
		s.abort(c, err)
		return
	}
	if debug, _ := strconv.ParseBool(c.Query("debug")); debug {
		c.JSON(http.StatusOK, res)
		return
	}
	c.String(http.StatusOK, res.Text)
}

// Command executes the chat command in form field "text". The reply's language is negotiated
// from query param locale, the Accept-Language header and the configured default.
func (s *Service) Command(c *gin.Context) {
	text := c.PostForm("text")
	var img []byte
	if fh, err := c.FormFile("image"); err == nil {
		img, err = s.readFormFile(fh)
		if err != nil {
			s.abort(c, err)
			return
		}
	} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	reply := s.commands.ExecuteText(c.Request.Context(), text, img, c.Query("locale"), c.GetHeader("Accept-Language"), s.locale)
	c.JSON(http.StatusOK, reply)
}

func (s *Service) imageFromRequest(c *gin.Context) ([]byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("image")
		if err != nil {
			return nil, err
		}
		return s.readFormFile(fh)
	}
	doc, err := imageparser.NewFromReader(c.Request.Body, s.maxImageSize)
	if err != nil {
		return nil, err
	}
	return doc.Data(), nil
}

func (s *Service) readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := imageparser.NewFromReader(f, s.maxImageSize)
	if err != nil {
		return nil, err
	}
	return doc.Data(), nil
}

func (s *Service) abort(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", "path", c.FullPath(), "status", status, "err", err)
	} else {
		s.log.Warn("Request failed", "path", c.FullPath(), "status", status, "err", err)
	}
	c.AbortWithStatusJSON(status, errorResponse(err))
}
