// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/examscribe/core"
)

// Collection is the persisted description of a collection.
type Collection struct {
	Name      string
	Dimension int
}

// PointMUS encodes core.Point with mus-go primitives. Layout: ID, Text,
// DocumentID, ChunkIndex, vector length, vector components.
var PointMUS = pointMUS{}

type pointMUS struct{}

func (pointMUS) Marshal(v core.Point, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.Text, bs[n:])
	n += ord.String.Marshal(v.DocumentID, bs[n:])
	n += varint.Int.Marshal(v.ChunkIndex, bs[n:])
	n += varint.Int.Marshal(len(v.Vector), bs[n:])
	for _, f := range v.Vector {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return
}

func (pointMUS) Unmarshal(bs []byte) (v core.Point, n int, err error) {
	var n1 int
	if v.ID, n1, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	n += n1
	if v.Text, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.DocumentID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.ChunkIndex, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	var length int
	if length, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if length < 0 || length*4 > len(bs)-n {
		err = ErrTruncatedData
		return
	}
	v.Vector = make([]float32, length)
	for i := range v.Vector {
		if v.Vector[i], n1, err = raw.Float32.Unmarshal(bs[n:]); err != nil {
			return
		}
		n += n1
	}
	return
}

func (pointMUS) Size(v core.Point) (size int) {
	size = ord.String.Size(v.ID)
	size += ord.String.Size(v.Text)
	size += ord.String.Size(v.DocumentID)
	size += varint.Int.Size(v.ChunkIndex)
	size += varint.Int.Size(len(v.Vector))
	for _, f := range v.Vector {
		size += raw.Float32.Size(f)
	}
	return
}

// CollectionMUS encodes Collection metadata.
var CollectionMUS = collectionMUS{}

type collectionMUS struct{}

func (collectionMUS) Marshal(v Collection, bs []byte) (n int) {
	n = ord.String.Marshal(v.Name, bs)
	n += varint.Int.Marshal(v.Dimension, bs[n:])
	return
}

func (collectionMUS) Unmarshal(bs []byte) (v Collection, n int, err error) {
	var n1 int
	if v.Name, n1, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	n += n1
	v.Dimension, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	return
}

func (collectionMUS) Size(v Collection) int {
	return ord.String.Size(v.Name) + varint.Int.Size(v.Dimension)
}

// MarshalPoint serializes a Point to bytes.
func MarshalPoint(point *core.Point) []byte {
	buf := make([]byte, PointMUS.Size(*point))
	PointMUS.Marshal(*point, buf)
	return buf
}

// UnmarshalPoint deserializes a Point from bytes.
func UnmarshalPoint(data []byte) (*core.Point, error) {
	point, _, err := PointMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: point: %w", ErrSerializationFailed, err)
	}
	return &point, nil
}

// MarshalCollection serializes Collection metadata to bytes.
func MarshalCollection(c *Collection) []byte {
	buf := make([]byte, CollectionMUS.Size(*c))
	CollectionMUS.Marshal(*c, buf)
	return buf
}

// UnmarshalCollection deserializes Collection metadata from bytes.
func UnmarshalCollection(data []byte) (*Collection, error) {
	c, _, err := CollectionMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: collection: %w", ErrSerializationFailed, err)
	}
	return &c, nil
}
