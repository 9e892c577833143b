package vm

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Image encoding: CBOR form of compiled functions
// ---------------------------------------------------------------------------

// ImageVersion is bumped whenever the bytecode or wire layout changes, so
// stale cached images are rejected rather than misread.
const ImageVersion = 1

// ErrImageVersion is returned when decoding an image from another version.
var ErrImageVersion = errors.New("vm: image version mismatch")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Nested functions are flattened into one table and referenced by index.
type wireImage struct {
	Version   int            `cbor:"1,keyasint"`
	Root      int            `cbor:"2,keyasint"`
	Functions []wireFunction `cbor:"3,keyasint"`
}

type wireFunction struct {
	Name      string         `cbor:"1,keyasint"`
	Unit      string         `cbor:"2,keyasint"`
	Arity     int            `cbor:"3,keyasint"`
	NumSlots  int            `cbor:"4,keyasint"`
	Code      []byte         `cbor:"5,keyasint"`
	Lines     []int          `cbor:"6,keyasint"`
	Constants []wireConstant `cbor:"7,keyasint"`
}

const (
	wireNull byte = iota
	wireBool
	wireNumber
	wireString
	wireFunc
)

type wireConstant struct {
	Kind byte    `cbor:"1,keyasint"`
	Num  float64 `cbor:"2,keyasint,omitempty"`
	Str  string  `cbor:"3,keyasint,omitempty"`
	Func int     `cbor:"4,keyasint,omitempty"`
}

// EncodeFunction serializes a compiled function and everything it nests.
func EncodeFunction(fn *Function) ([]byte, error) {
	img := &wireImage{Version: ImageVersion}
	index := make(map[*Function]int)
	root, err := flatten(img, index, fn)
	if err != nil {
		return nil, err
	}
	img.Root = root
	return cborEncMode.Marshal(img)
}

func flatten(img *wireImage, index map[*Function]int, fn *Function) (int, error) {
	if idx, ok := index[fn]; ok {
		return idx, nil
	}
	idx := len(img.Functions)
	index[fn] = idx
	img.Functions = append(img.Functions, wireFunction{})

	wf := wireFunction{
		Name:      fn.Name,
		Unit:      fn.Unit,
		Arity:     fn.Arity,
		NumSlots:  fn.NumSlots,
		Code:      fn.Code,
		Lines:     fn.Lines,
		Constants: make([]wireConstant, len(fn.Constants)),
	}
	for i, c := range fn.Constants {
		switch c.Kind() {
		case KindNull:
			wf.Constants[i] = wireConstant{Kind: wireNull}
		case KindBool:
			wc := wireConstant{Kind: wireBool}
			if c.Bool() {
				wc.Num = 1
			}
			wf.Constants[i] = wc
		case KindNumber:
			wf.Constants[i] = wireConstant{Kind: wireNumber, Num: c.Number()}
		case KindString:
			wf.Constants[i] = wireConstant{Kind: wireString, Str: c.Str()}
		default:
			nested, ok := c.Object().(*Function)
			if !ok {
				return 0, fmt.Errorf("vm: cannot encode %s constant", c.TypeName())
			}
			child, err := flatten(img, index, nested)
			if err != nil {
				return 0, err
			}
			wf.Constants[i] = wireConstant{Kind: wireFunc, Func: child}
		}
	}
	img.Functions[idx] = wf
	return idx, nil
}

// DecodeFunction reverses EncodeFunction.
func DecodeFunction(data []byte) (*Function, error) {
	var img wireImage
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("vm: unmarshal image: %w", err)
	}
	if img.Version != ImageVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrImageVersion, img.Version, ImageVersion)
	}
	if img.Root < 0 || img.Root >= len(img.Functions) {
		return nil, fmt.Errorf("vm: image root %d out of range", img.Root)
	}

	fns := make([]*Function, len(img.Functions))
	for i := range fns {
		fns[i] = &Function{}
	}
	for i, wf := range img.Functions {
		if len(wf.Lines) != len(wf.Code) {
			return nil, fmt.Errorf("vm: function %d has %d lines for %d bytes", i, len(wf.Lines), len(wf.Code))
		}
		fn := fns[i]
		fn.Name = wf.Name
		fn.Unit = wf.Unit
		fn.Arity = wf.Arity
		fn.NumSlots = wf.NumSlots
		fn.Code = wf.Code
		fn.Lines = wf.Lines
		fn.Constants = make([]Value, len(wf.Constants))
		for j, wc := range wf.Constants {
			switch wc.Kind {
			case wireNull:
				fn.Constants[j] = Null
			case wireBool:
				fn.Constants[j] = FromBool(wc.Num != 0)
			case wireNumber:
				fn.Constants[j] = FromNumber(wc.Num)
			case wireString:
				fn.Constants[j] = FromString(wc.Str)
			case wireFunc:
				if wc.Func < 0 || wc.Func >= len(fns) {
					return nil, fmt.Errorf("vm: function reference %d out of range", wc.Func)
				}
				fn.Constants[j] = FromObject(fns[wc.Func])
			default:
				return nil, fmt.Errorf("vm: unknown constant kind %d", wc.Kind)
			}
		}
	}
	return fns[img.Root], nil
}
