package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/examroutine/core"
	"github.com/trezcool/examroutine/core/exam"
)

var (
	errUnauthorized      = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden     = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound      = echo.NewHTTPError(http.StatusNotFound, "not found")
	errExamNotFoundInCtx = errors.New("exam object not found in echo.Context")
)

// BatchResponse is sent with 207 when only part of a batch went through.
type BatchResponse struct {
	Attempted int               `json:"attempted"`
	Failed    map[string]string `json:"failed"`
	Result    interface{}       `json:"result,omitempty"`
}

func newBatchResponse(berr *exam.BatchError, result interface{}) BatchResponse {
	failed := make(map[string]string, len(berr.Failed))
	for target, err := range berr.Failed {
		failed[target] = errors.Cause(err).Error()
	}
	return BatchResponse{Attempted: berr.Attempted, Failed: failed, Result: result}
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if fldErrs := origErr.FieldMap(); fldErrs != nil {
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *core.ArgumentError:
			code = http.StatusBadRequest
			message = origErr.Error()
		case *exam.BatchError:
			code = http.StatusMultiStatus
			message = newBatchResponse(origErr, nil)
		default:
			switch errors.Cause(err) {
			case exam.ErrNotFound:
				code = http.StatusNotFound
			case exam.ErrVersionConflict, exam.ErrInvalidTransition, exam.ErrTerminalStatus:
				code = http.StatusConflict
			case exam.ErrClassNotAssigned:
				code = http.StatusForbidden
			case exam.ErrEmptySource:
				code = http.StatusBadRequest
			}
			if code != 0 {
				message = errors.Cause(err).Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			args := []interface{}{errors.Wrap(err, msg)}
			if actor, aErr := getContextActor(ctx); aErr == nil {
				args = append(args, actor)
			}
			logger.Error(msg, args...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
