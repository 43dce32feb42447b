package remote

import (
	"errors"
	"net/http"

	"github.com/labstack/echo"

	"github.com/shuang886/sharky/internal/band"
	"github.com/shuang886/sharky/internal/radio"
)

// respond maps a controller result to a response carrying the new state.
func (s *Server) respond(c echo.Context, err error) error {
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, s.radio.State())
	case errors.Is(err, radio.ErrUnknownStation):
		return fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, band.ErrOutOfRange):
		return fail(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, radio.ErrClosed):
		return fail(c, http.StatusServiceUnavailable, err.Error())
	default:
		return fail(c, http.StatusInternalServerError, err.Error())
	}
}

func fail(c echo.Context, status int, message string) error {
	return c.JSON(status, echo.Map{
		"error": message,
	})
}

func (s *Server) getState(c echo.Context) error {
	return c.JSON(http.StatusOK, s.radio.State())
}

func (s *Server) tune(c echo.Context) error {
	var dir band.Direction
	switch c.Param("direction") {
	case "up":
		dir = band.Up
	case "down":
		dir = band.Down
	default:
		return fail(c, http.StatusBadRequest, "direction must be up or down")
	}
	return s.respond(c, s.radio.TuneStep(dir))
}

func (s *Server) setBand(c echo.Context) error {
	form := struct {
		Band string `json:"band"`
	}{}
	if err := c.Bind(&form); err != nil {
		return fail(c, http.StatusBadRequest, "Missing band")
	}
	b, err := band.Parse(form.Band)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	return s.respond(c, s.radio.SetBand(b))
}

func (s *Server) nextBand(c echo.Context) error {
	return s.respond(c, s.radio.NextBand())
}

func (s *Server) setFrequency(c echo.Context) error {
	form := struct {
		Hz *int64 `json:"hz"`
	}{}
	if err := c.Bind(&form); err != nil || form.Hz == nil {
		return fail(c, http.StatusBadRequest, "Missing hz")
	}
	return s.respond(c, s.radio.SetFrequency(band.Frequency(*form.Hz)))
}

func (s *Server) setVolume(c echo.Context) error {
	form := struct {
		Value *float64 `json:"value"`
	}{}
	if err := c.Bind(&form); err != nil || form.Value == nil {
		return fail(c, http.StatusBadRequest, "Missing value")
	}
	return s.respond(c, s.radio.SetVolume(*form.Value))
}

func (s *Server) setLights(c echo.Context) error {
	form := struct {
		Blue  *int `json:"blue"`
		Pulse *int `json:"pulse"`
		Red   *int `json:"red"`
	}{}
	if err := c.Bind(&form); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid lights")
	}
	if form.Blue == nil && form.Pulse == nil && form.Red == nil {
		return fail(c, http.StatusBadRequest, "Missing blue, pulse or red")
	}

	if form.Blue != nil {
		if err := s.radio.SetBlueLight(*form.Blue); err != nil {
			return s.respond(c, err)
		}
	}
	if form.Pulse != nil {
		if err := s.radio.SetBlueLightPulse(*form.Pulse); err != nil {
			return s.respond(c, err)
		}
	}
	if form.Red != nil {
		if err := s.radio.SetRedLight(*form.Red); err != nil {
			return s.respond(c, err)
		}
	}
	return s.respond(c, nil)
}

func (s *Server) toggleFavorite(c echo.Context) error {
	return s.respond(c, s.radio.ToggleFavorite())
}

func (s *Server) tuneFavorite(c echo.Context) error {
	return s.respond(c, s.radio.TuneFavorite(c.Param("id")))
}

func (s *Server) renameFavorite(c echo.Context) error {
	form := struct {
		Name string `json:"name"`
	}{}
	if err := c.Bind(&form); err != nil {
		return fail(c, http.StatusBadRequest, "Missing name")
	}
	return s.respond(c, s.radio.RenameFavorite(c.Param("id"), form.Name))
}

func (s *Server) removeFavorite(c echo.Context) error {
	return s.respond(c, s.radio.RemoveFavorite(c.Param("id")))
}

func (s *Server) toggleRecognition(c echo.Context) error {
	return s.respond(c, s.radio.ToggleRecognition())
}
