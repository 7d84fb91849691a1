package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/atemonitor/atemap/model"
	"github.com/atemonitor/atemap/multipartx"
	"github.com/atemonitor/atemap/upload"
)

// uploadField is the form field carrying the run file
const uploadField = "file"

// UploadRuns stores the file part of a multipart body in sink
func UploadRuns(sink upload.Sink) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return errorResponse(c, err)
		}

		contentType := c.Request().Header.Get(echo.HeaderContentType)
		part, err := multipartx.ExtractFile(contentType, body, uploadField)
		if err != nil {
			log.Warnf("Rejected upload from %s: %v", currentUsername(c), err)
			return errorResponse(c, err)
		}

		if err := sink.Save(c.Request().Context(), part.Filename, part.Content); err != nil {
			return errorResponse(c, err)
		}

		log.Infof("Uploaded and saved %s", part.Filename)
		return c.JSON(http.StatusOK, model.JSONResponse{Status: "OK"})
	}
}
