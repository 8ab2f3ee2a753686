package bookstore

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/storelabs/storelabs/internal/errors"
)

// DefaultExportLimit is the number of documents exported per collection.
const DefaultExportLimit = 10

// document keeps field order when rendered as JSON.
type document bson.D

func (d document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Serialize converts a decoded BSON value into something encoding/json
// renders plainly: ObjectIDs become hex strings and datetimes RFC 3339.
func Serialize(v interface{}) interface{} {
	switch x := v.(type) {
	case primitive.ObjectID:
		return x.Hex()
	case primitive.DateTime:
		return x.Time().UTC().Format(time.RFC3339Nano)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case primitive.Decimal128:
		return x.String()
	case bson.D:
		out := make(document, len(x))
		for i, e := range x {
			out[i] = primitive.E{Key: e.Key, Value: Serialize(e.Value)}
		}
		return out
	case bson.M:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = Serialize(e)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = Serialize(e)
		}
		return out
	case []interface{}:
		return Serialize(bson.A(x))
	default:
		return v
	}
}

// EncodeDocuments renders docs as an indented JSON array.
func EncodeDocuments(docs []bson.D) ([]byte, error) {
	out := make([]interface{}, len(docs))
	for i, d := range docs {
		out[i] = Serialize(d)
	}
	return json.MarshalIndent(out, "", "    ")
}

// Export writes the first limit documents of every collection to
// dir/<collection>.json and returns the count written per collection.
func (s *Store) Export(ctx context.Context, dir string, limit int64) (map[string]int, error) {
	if limit <= 0 {
		limit = DefaultExportLimit
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewInternalError("create export directory", err)
	}
	counts := make(map[string]int, len(Collections))
	err := s.timed(ctx, "export", func(ctx context.Context) error {
		for _, name := range Collections {
			cur, err := s.coll(name).Find(ctx, bson.D{}, options.Find().SetLimit(limit))
			if err != nil {
				return queryErr("export "+name, err)
			}
			var docs []bson.D
			if err := cur.All(ctx, &docs); err != nil {
				return queryErr("export "+name+" decode", err)
			}
			data, err := EncodeDocuments(docs)
			if err != nil {
				return errors.NewInternalError("encode "+name, err)
			}
			path := filepath.Join(dir, name+".json")
			if err := os.WriteFile(path, data, 0644); err != nil {
				return errors.NewInternalError("write "+path, err)
			}
			counts[name] = len(docs)
			s.logger.WithFields(logrus.Fields{"collection": name, "documents": len(docs), "path": path}).Info("exported collection")
		}
		return nil
	})
	return counts, err
}
