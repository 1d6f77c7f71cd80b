package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scandishop/storefront_api/internal/graphql"
)

// GraphQLHandler serves the single query/mutation endpoint.
type GraphQLHandler struct {
	schema *graphql.Schema
}

// NewGraphQLHandler constructs a GraphQLHandler.
func NewGraphQLHandler(schema *graphql.Schema) *GraphQLHandler {
	return &GraphQLHandler{schema: schema}
}

// Serve handles POST /graphql. Bodies that are not a GraphQL request get a
// 400 in the GraphQL error shape; everything else, including resolver
// errors, is a 200.
func (h *GraphQLHandler) Serve(c *gin.Context) {
	var req graphql.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		graphQLError(c, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		graphQLError(c, "Missing query")
		return
	}

	c.JSON(200, h.schema.Execute(c.Request.Context(), req))
}

func graphQLError(c *gin.Context, message string) {
	c.JSON(400, gin.H{
		"errors": []gin.H{{"message": message}},
	})
}
