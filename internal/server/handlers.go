package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/nao1215/trustcrawl/internal/config"
	"github.com/nao1215/trustcrawl/internal/model"
	"github.com/nao1215/trustcrawl/internal/trust"
)

// neighborsParams are the validated inputs of a neighbors lookup.
type neighborsParams struct {
	Chain string   `validate:"required"`
	Depth int      `validate:"min=1,max=10"`
	Limit int      `validate:"min=1,max=1000"`
	Seeds []string `validate:"required,min=1,dive,required"`
}

// neighborsResponse is the body of a successful lookup.
type neighborsResponse struct {
	Result []model.ScoredAddress `json:"result"`
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Detail string `json:"detail"`
}

const unknownErrorDetail = "Unknown error"

// neighborsRoute sets the chain and depth bounds of one neighbors endpoint.
type neighborsRoute struct {
	// chain is fixed for the route; empty takes it from the :blockchain segment.
	chain        string
	defaultDepth int
	maxDepth     int
}

var (
	chainRoute = neighborsRoute{defaultDepth: config.DefaultDepth, maxDepth: config.MaxDepth}

	// ethTransfersRoute serves /graph/neighbors/eth_transfers with the bounds
	// that endpoint has always had.
	ethTransfersRoute = neighborsRoute{chain: "eth", defaultDepth: 2, maxDepth: 5}
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) neighbors(route neighborsRoute) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.serveNeighbors(c, route)
	}
}

func (s *Server) serveNeighbors(c *gin.Context, route neighborsRoute) {
	params, err := s.bindNeighbors(c, route)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Detail: err.Error()})
		return
	}

	scores, err := s.service.Neighbors(c.Request.Context(), trust.Request{
		Seeds: params.Seeds,
		Depth: params.Depth,
		Limit: params.Limit,
		Chain: params.Chain,
	})
	switch {
	case errors.Is(err, trust.ErrInvalidRequest):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Detail: err.Error()})
		return
	case err != nil:
		s.logger.Error("neighbors request failed",
			"request_id", c.GetString(requestIDKey),
			"chain", params.Chain,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, errorResponse{Detail: unknownErrorDetail})
		return
	}

	if scores == nil {
		scores = []model.ScoredAddress{}
	}
	c.JSON(http.StatusOK, neighborsResponse{Result: scores})
}

// bindNeighbors reads the path, query and body of a neighbors request.
func (s *Server) bindNeighbors(c *gin.Context, route neighborsRoute) (neighborsParams, error) {
	p := neighborsParams{Chain: route.chain}
	if p.Chain == "" {
		p.Chain = c.Param("blockchain")
	}

	var err error
	if p.Depth, err = queryInt(c, "k", route.defaultDepth); err != nil {
		return p, err
	}
	if p.Limit, err = queryInt(c, "limit", config.DefaultLimit); err != nil {
		return p, err
	}
	if err := c.ShouldBindJSON(&p.Seeds); err != nil {
		return p, errors.New("body must be a JSON array of addresses")
	}
	if err := s.validate.Struct(p); err != nil {
		return p, describeValidation(err)
	}
	if p.Depth > route.maxDepth {
		return p, fmt.Errorf("k must be at most %d", route.maxDepth)
	}
	return p, nil
}

// paramNames maps neighborsParams fields to the names clients send.
var paramNames = map[string]string{
	"Chain": "blockchain",
	"Depth": "k",
	"Limit": "limit",
	"Seeds": "body",
}

// describeValidation turns the first validation failure into a client message.
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	name := paramNames[fe.StructField()]
	if name == "" {
		name = "body"
	}
	switch fe.Tag() {
	case "min":
		return fmt.Errorf("%s must be at least %s", name, fe.Param())
	case "max":
		return fmt.Errorf("%s must be at most %s", name, fe.Param())
	default:
		return fmt.Errorf("%s is required", name)
	}
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("query parameter " + name + " must be an integer")
	}
	return v, nil
}
