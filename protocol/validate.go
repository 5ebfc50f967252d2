package protocol

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/move.schema.json
var moveSchemaJSON []byte

var (
	moveSchemaOnce sync.Once
	moveSchema     *jsonschema.Schema
	moveSchemaErr  error
)

func compiledMoveSchema() (*jsonschema.Schema, error) {
	moveSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("move.schema.json", bytes.NewReader(moveSchemaJSON)); err != nil {
			moveSchemaErr = err
			return
		}
		moveSchema, moveSchemaErr = c.Compile("move.schema.json")
	})
	return moveSchema, moveSchemaErr
}

// ValidateMove 中继侧校验 move 负载（JSON 编码）；方向分量必须是 -1/0/1
func ValidateMove(payload []byte) error {
	s, err := compiledMoveSchema()
	if err != nil {
		return fmt.Errorf("protocol: compile move schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return fmt.Errorf("protocol: move payload: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("protocol: invalid move: %w", err)
	}
	return nil
}

// ValidateMoveValue 任意编码解出的 Move 走同一套 schema
func ValidateMoveValue(m Move) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return ValidateMove(b)
}
