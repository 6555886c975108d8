package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/content-hub/internal/model"
)

func (e *testEnv) createContent(t *testing.T, userID string, body any) model.Content {
	t.Helper()
	rr := serve(e.contents.HandleCreate, as(jsonRequest(http.MethodPost, "/contents", body), userID))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp struct {
		Content model.Content `json:"content"`
	}
	decode(t, rr, &resp)
	return resp.Content
}

func (e *testEnv) listContents(t *testing.T, query string) []model.Content {
	t.Helper()
	rr := serve(e.contents.HandleList, httptest.NewRequest(http.MethodGet, "/contents"+query, nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var got []model.Content
	decode(t, rr, &got)
	return got
}

func TestContentHandler_CreateWithCategories(t *testing.T) {
	env := newTestEnv(t)
	uid := env.register(t, "alice")
	tech := env.createCategory(t, uid, map[string]any{"name": "Tech"})

	post := env.createContent(t, uid, map[string]any{
		"title":         "Post1",
		"content_type":  "text",
		"metadata_tags": map[string]any{"lang": "en", "tags": []string{"go"}},
		"category_ids":  []string{tech.ID},
	})
	require.Len(t, post.Categories, 1)
	assert.Equal(t, "Tech", post.Categories[0].Name)
	assert.Equal(t, uid, post.UserID)
	assert.JSONEq(t, `{"lang":"en","tags":["go"]}`, string(post.MetadataTags))

	env.createContent(t, uid, map[string]any{"title": "Untagged", "content_type": "text"})

	t.Run("filter by category", func(t *testing.T) {
		got := env.listContents(t, "?category_id="+tech.ID)
		require.Len(t, got, 1)
		assert.Equal(t, "Post1", got[0].Title)
	})

	t.Run("unfiltered newest first", func(t *testing.T) {
		got := env.listContents(t, "")
		require.Len(t, got, 2)
		assert.Equal(t, "Untagged", got[0].Title)
	})

	t.Run("paging", func(t *testing.T) {
		got := env.listContents(t, "?limit=1&offset=1")
		require.Len(t, got, 1)
		assert.Equal(t, "Post1", got[0].Title)
	})

	t.Run("bad paging parameter", func(t *testing.T) {
		rr := serve(env.contents.HandleList, httptest.NewRequest(http.MethodGet, "/contents?limit=abc", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown category writes nothing", func(t *testing.T) {
		rr := serve(env.contents.HandleCreate, as(jsonRequest(http.MethodPost, "/contents",
			map[string]any{"title": "Ghost", "content_type": "text", "category_ids": []string{tech.ID, "nope"}}), uid))
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Len(t, env.listContents(t, ""), 2)
	})

	t.Run("missing title", func(t *testing.T) {
		rr := serve(env.contents.HandleCreate, as(jsonRequest(http.MethodPost, "/contents", `{"content_type":"text"}`), uid))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "title", decodeError(t, rr).Field)
	})

	t.Run("missing title and type", func(t *testing.T) {
		rr := serve(env.contents.HandleCreate, as(jsonRequest(http.MethodPost, "/contents", `{"data_url":"https://x"}`), uid))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		body := decodeError(t, rr)
		details, ok := body.Details.(map[string]any)
		require.True(t, ok, "details = %#v", body.Details)
		assert.Contains(t, details, "title")
		assert.Contains(t, details, "content_type")
	})

	t.Run("non-JSON body", func(t *testing.T) {
		req := as(httptest.NewRequest(http.MethodPost, "/contents", nil), uid)
		req.Header.Set("Content-Type", "text/plain")
		assert.Equal(t, http.StatusUnsupportedMediaType, serve(env.contents.HandleCreate, req).Code)
	})

	t.Run("empty body", func(t *testing.T) {
		rr := serve(env.contents.HandleCreate, as(jsonRequest(http.MethodPost, "/contents", nil), uid))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestContentHandler_UpdateMetadata(t *testing.T) {
	env := newTestEnv(t)
	uid := env.register(t, "alice")
	tech := env.createCategory(t, uid, map[string]any{"name": "Tech"})
	food := env.createCategory(t, uid, map[string]any{"name": "Food"})
	post := env.createContent(t, uid, map[string]any{
		"title":        "Post1",
		"content_type": "text",
		"category_ids": []string{tech.ID},
	})

	update := func(body string) *httptest.ResponseRecorder {
		req := withPath(as(jsonRequest(http.MethodPut, "/contents/"+post.ID+"/metadata", body), uid), "id", post.ID)
		return serve(env.contents.HandleUpdateMetadata, req)
	}

	t.Run("empty body changes nothing", func(t *testing.T) {
		rr := update(`{}`)
		require.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Msg string `json:"msg"`
		}
		decode(t, rr, &resp)
		assert.Equal(t, "no changes", resp.Msg)
	})

	t.Run("replace categories", func(t *testing.T) {
		rr := update(`{"title":"Post One","category_ids":["` + food.ID + `"]}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var resp struct {
			Content model.Content `json:"content"`
		}
		decode(t, rr, &resp)
		assert.Equal(t, "Post One", resp.Content.Title)
		require.Len(t, resp.Content.Categories, 1)
		assert.Equal(t, "Food", resp.Content.Categories[0].Name)

		assert.Empty(t, env.listContents(t, "?category_id="+tech.ID))
	})

	t.Run("invalid category leaves everything", func(t *testing.T) {
		rr := update(`{"title":"Broken","category_ids":["nope"]}`)
		assert.Equal(t, http.StatusNotFound, rr.Code)

		req := withPath(httptest.NewRequest(http.MethodGet, "/contents/"+post.ID, nil), "id", post.ID)
		rr = serve(env.contents.HandleGet, req)
		var got model.Content
		decode(t, rr, &got)
		assert.Equal(t, "Post One", got.Title)
	})

	t.Run("delete", func(t *testing.T) {
		req := withPath(as(httptest.NewRequest(http.MethodDelete, "/contents/"+post.ID, nil), uid), "id", post.ID)
		require.Equal(t, http.StatusOK, serve(env.contents.HandleDelete, req).Code)

		req = withPath(httptest.NewRequest(http.MethodGet, "/contents/"+post.ID, nil), "id", post.ID)
		assert.Equal(t, http.StatusNotFound, serve(env.contents.HandleGet, req).Code)
	})
}
