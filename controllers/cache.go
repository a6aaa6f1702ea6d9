package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/carecircle/utils"
)

const (
	postListPrefix  = "cache:posts:list:"
	replyListPrefix = "cache:replies:list:"
	replyTreePrefix = "cache:replies:tree:"
)

func postListKey(ctx *gin.Context) string {
	return postListPrefix + ctx.Request.URL.Query().Encode()
}

func replyListKey(ctx *gin.Context, postID uint) string {
	return fmt.Sprintf("%s%d:%s", replyListPrefix, postID, ctx.Request.URL.Query().Encode())
}

func replyTreeKey(postID uint) string {
	return fmt.Sprintf("%s%d", replyTreePrefix, postID)
}

// replyPrefixes are the cached views touched by a write to one post's replies. Reply counts show
// up in post lists too.
func replyPrefixes(postID uint) []string {
	return []string{
		replyTreeKey(postID),
		fmt.Sprintf("%s%d:", replyListPrefix, postID),
		postListPrefix,
	}
}

// envelope renders data as the success body so cached bytes can be replayed verbatim.
func envelope(data interface{}) ([]byte, error) {
	return json.Marshal(utils.JSONResponse{Code: utils.CodeOK, Message: "success", Data: data})
}

func writeCached(ctx *gin.Context, b []byte) {
	ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
}
