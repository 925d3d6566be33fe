package witness

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

var ErrSyntax = errors.New("witness program has a syntax error")

// Validate parses program with the TypeScript grammar. The oracle only
// reports pass or fail, so a syntax error in a generated program would
// otherwise read as an incompatibility.
func Validate(ctx context.Context, program []byte) error {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(typescript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, program)
	if err != nil {
		return fmt.Errorf("parsing witness program: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil
	}
	if node := firstError(root); node != nil {
		p := node.StartPoint()
		return fmt.Errorf("%w at line %d, column %d", ErrSyntax, p.Row+1, p.Column+1)
	}
	return ErrSyntax
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if found := firstError(n.Child(i)); found != nil {
			return found
		}
	}
	return nil
}

// Validate checks both programs of the pair.
func (p *Pair) Validate(ctx context.Context) error {
	if err := Validate(ctx, p.Forward); err != nil {
		return fmt.Errorf("%s: %w", ForwardFile, err)
	}
	if err := Validate(ctx, p.Backward); err != nil {
		return fmt.Errorf("%s: %w", BackwardFile, err)
	}
	return nil
}
