// Package rag is the client of the document retriever used for RAG chat.
package rag

import (
	"context"
	"net/http"
	"time"

	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/chat"
	"github.com/trezcool/virtualtutor/services/upstream"
)

const (
	serviceName     = "rag"
	retrieveTimeout = 30 * time.Second
)

type Client struct {
	c *upstream.Client
}

var _ chat.Retriever = (*Client)(nil)

func NewClient(conf *core.Config) *Client {
	return &Client{c: upstream.New(serviceName, conf.LLM.RAGURL)}
}

type (
	retrieveRequest struct {
		UserID    string `json:"user_id"`
		Query     string `json:"query"`
		PersonalK int    `json:"personal_k"`
		PublicK   int    `json:"public_k"`
	}

	retrieveResponse struct {
		FinalResults []struct {
			PageContent string `json:"page_content"`
		} `json:"final_results"`
	}
)

// Retrieve returns the contents of the personal and public documents matching query.
func (cl *Client) Retrieve(ctx context.Context, userID, query string, topK int) ([]string, error) {
	body, err := upstream.JSONBody(retrieveRequest{UserID: userID, Query: query, PersonalK: topK, PublicK: topK})
	if err != nil {
		return nil, err
	}
	var res retrieveResponse
	err = cl.c.JSON(ctx, upstream.Request{
		Method:      http.MethodPost,
		Path:        "/retriever",
		Body:        body,
		ContentType: "application/json",
		Timeout:     retrieveTimeout,
		Operation:   "retrieve",
	}, &res)
	if err != nil {
		return nil, err
	}
	docs := make([]string, 0, len(res.FinalResults))
	for _, r := range res.FinalResults {
		docs = append(docs, r.PageContent)
	}
	return docs, nil
}
