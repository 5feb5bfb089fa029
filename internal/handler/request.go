package handler

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/hitoshi/oneshot/internal/model"
)

// maxRequestBodyBytes はリクエストボディの上限。
const maxRequestBodyBytes = 64 << 10

// formFields はJSONボディまたはフォームから文字列フィールドを読み取る。
// Content-Typeがapplication/jsonならJSONオブジェクト、それ以外はフォームとして扱う。
// 存在しないフィールドは空文字になる。
func formFields(w http.ResponseWriter, r *http.Request, names ...string) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	values := make(map[string]string, len(names))
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, model.NewInvalidInputError("request body is not valid JSON")
		}
		for _, name := range names {
			v, ok := body[name]
			if !ok || v == nil {
				continue
			}
			s, ok := v.(string)
			if !ok {
				return nil, model.NewInvalidInputError(name + " must be a string")
			}
			values[name] = s
		}
		return values, nil
	}

	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(maxRequestBodyBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return nil, model.NewInvalidInputError("request body could not be parsed")
	}
	for _, name := range names {
		values[name] = r.PostForm.Get(name)
	}
	return values, nil
}
