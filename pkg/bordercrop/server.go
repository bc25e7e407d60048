// Copyright 2020 Juergen Enge, info-age GmbH, Basel. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package bordercrop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"

	"emperror.dev/errors"
	"github.com/disintegration/imaging"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/je4/bordercrop/pkg/border"
	"github.com/je4/utils/v2/pkg/zLogger"
)

type CropRect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type ScanResponse struct {
	Filename string `json:"filename,omitempty"`
	Mimetype string `json:"mimetype"`
	border.Result
	Sides []string `json:"sides"`
	Crop  CropRect `json:"crop"`
}

type errorResponse struct {
	Status     int    `json:"status"`
	StatusText string `json:"statustext"`
	Message    string `json:"message"`
}

// Server exposes the border scan via http
type Server struct {
	srv           *http.Server
	opts          border.Options
	maxUploadSize int64
	jpegQuality   int
	logger        zLogger.ZLogger
	accesslog     io.Writer
}

func NewServer(opts border.Options, maxUploadSize int64, jpegQuality int, logger zLogger.ZLogger, accesslog io.Writer) (*Server, error) {
	if err := opts.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}
	if maxUploadSize <= 0 {
		maxUploadSize = GetDefaultServerConfig().MaxUploadSize
	}
	if jpegQuality <= 0 {
		jpegQuality = GetDefaultConfig().JPEGQuality
	}
	return &Server{
		srv:           &http.Server{},
		opts:          opts,
		maxUploadSize: maxUploadSize,
		jpegQuality:   jpegQuality,
		logger:        logger,
		accesslog:     accesslog,
	}, nil
}

func (s *Server) DoPanicf(writer http.ResponseWriter, status int, message string, a ...interface{}) {
	msg := fmt.Sprintf(message, a...)
	s.DoPanic(writer, status, msg)
}

func (s *Server) DoPanic(writer http.ResponseWriter, status int, message string) {
	s.logger.Error().Msg(message)
	data := errorResponse{
		Status:     status,
		StatusText: http.StatusText(status),
		Message:    message,
	}
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("cannot write error response")
	}
}

// options takes the default scan options, overwritten by the query parameters
// colorthresh and consistency
func (s *Server) options(r *http.Request) (border.Options, error) {
	opts := s.opts
	q := r.URL.Query()
	if str := q.Get("colorthresh"); str != "" {
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return opts, errors.Wrapf(err, "invalid colorthresh '%s'", str)
		}
		opts.ColorThreshold = v
	}
	if str := q.Get("consistency"); str != "" {
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return opts, errors.Wrapf(err, "invalid consistency '%s'", str)
		}
		opts.LineConsistency = v
	}
	return opts, errors.WithStack(opts.Validate())
}

// readImage loads the request body. It writes the error response itself and
// returns ok=false on failure.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request) (img image.Image, mimetype string, ok bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxUploadSize+1))
	if err != nil {
		s.DoPanicf(w, http.StatusInternalServerError, "cannot read body: %v", err)
		return nil, "", false
	}
	if int64(len(body)) > s.maxUploadSize {
		s.DoPanicf(w, http.StatusRequestEntityTooLarge, "image larger than %d bytes", s.maxUploadSize)
		return nil, "", false
	}
	m, err := sniffImage(body)
	if err != nil {
		s.DoPanicf(w, http.StatusUnsupportedMediaType, "%v", err)
		return nil, "", false
	}
	img, err = imaging.Decode(bytes.NewReader(body))
	if err != nil {
		s.DoPanicf(w, http.StatusBadRequest, "cannot decode %s: %v", m.String(), err)
		return nil, "", false
	}
	return img, m.String(), true
}

func (s *Server) HandleScan(w http.ResponseWriter, r *http.Request) {
	opts, err := s.options(r)
	if err != nil {
		s.DoPanicf(w, http.StatusBadRequest, "%v", err)
		return
	}
	img, mimetype, ok := s.readImage(w, r)
	if !ok {
		return
	}
	result := border.Scan(img, opts)
	resp := ScanResponse{
		Filename: r.URL.Query().Get("name"),
		Mimetype: mimetype,
		Result:   result,
		Sides:    result.Sides(),
		Crop: CropRect{
			X:      result.Left,
			Y:      result.Top,
			Width:  result.CropWidth(),
			Height: result.CropHeight(),
		},
	}
	js, err := json.Marshal(resp)
	if err != nil {
		s.DoPanicf(w, http.StatusInternalServerError, "cannot marshal result %v: %v", resp, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(js)
}

func (s *Server) HandleCrop(w http.ResponseWriter, r *http.Request) {
	opts, err := s.options(r)
	if err != nil {
		s.DoPanicf(w, http.StatusBadRequest, "%v", err)
		return
	}
	img, mimetype, ok := s.readImage(w, r)
	if !ok {
		return
	}
	result, cropped := border.Remove(img, opts)
	if cropped == nil {
		s.DoPanicf(w, http.StatusUnprocessableEntity, "empty crop %dx%d", result.CropWidth(), result.CropHeight())
		return
	}
	format := imaging.PNG
	if mimetype == "image/jpeg" {
		format = imaging.JPEG
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, cropped, format, imaging.JPEGQuality(s.jpegQuality)); err != nil {
		s.DoPanicf(w, http.StatusInternalServerError, "cannot encode cropped image: %v", err)
		return
	}
	w.Header().Set("Content-Type", mimetype)
	w.Header().Set("X-Border-Top", strconv.Itoa(result.Top))
	w.Header().Set("X-Border-Bottom", strconv.Itoa(result.Bottom))
	w.Header().Set("X-Border-Left", strconv.Itoa(result.Left))
	w.Header().Set("X-Border-Right", strconv.Itoa(result.Right))
	w.Write(buf.Bytes())
}

func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/scan", s.HandleScan).Methods("POST")
	router.HandleFunc("/crop", s.HandleCrop).Methods("POST")

	if s.accesslog == nil {
		return router
	}
	return handlers.LoggingHandler(s.accesslog, router)
}

func (s *Server) ListenAndServe(addr, cert, key string) error {
	s.srv.Handler = s.Handler()
	s.srv.Addr = addr
	if cert != "" && key != "" {
		s.logger.Info().Msgf("starting HTTPS border server at https://%v", addr)
		return s.srv.ListenAndServeTLS(cert, key)
	} else {
		s.logger.Info().Msgf("starting HTTP border server at http://%v", addr)
		return s.srv.ListenAndServe()
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
