// Package schema はリクエストボディのJSON Schema検証を提供する。
// スキーマはバイナリに埋め込み、パッケージ初期化時に1回だけコンパイルする。
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// itemCreateURL は出品作成スキーマのリソースURL。item_create.jsonの$idと一致させること。
const itemCreateURL = "https://campusmart.local/schemas/item_create.json"

var itemCreateSchema *jsonschema.Schema

func init() {
	itemCreateSchema = mustCompile(itemCreateURL, "schemas/item_create.json")
}

// mustCompile は埋め込みファイルからスキーマをコンパイルする。失敗はビルド不備なのでpanicする。
func mustCompile(url, path string) *jsonschema.Schema {
	raw, err := schemaFS.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("failed to read schema %s: %v", path, err))
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("failed to add schema %s: %v", url, err))
	}

	s, err := compiler.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("failed to compile schema %s: %v", url, err))
	}
	return s
}

// ValidateCreateItem は出品作成リクエストのボディをスキーマで検証する。
func ValidateCreateItem(body []byte) error {
	return validate(itemCreateSchema, body)
}

// validate はJSONを汎用型にデコードしてから検証する。
// 価格の精度を落とさないよう数値はjson.Numberのまま扱う。
func validate(s *jsonschema.Schema, body []byte) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("body is not valid JSON: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("body must contain a single JSON value")
	}

	if err := s.Validate(v); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
