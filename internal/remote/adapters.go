package remote

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path"

	"schoolmaps/internal/pkg/wire"
)

const usersCollection = "users"

// Profiles is the session's ProfileStore: the users collection keyed by uid.
type Profiles struct {
	c    *Client
	live *Live
}

func NewProfiles(c *Client, live *Live) *Profiles {
	return &Profiles{c: c, live: live}
}

func (p *Profiles) Subscribe(uid string, onSnapshot func(*wire.ProfileDocument), onError func(error)) func() {
	target := wire.Target{Kind: wire.TargetDoc, Collection: usersCollection, ID: uid}

	return p.live.subscribe(target,
		func(s wire.SnapshotPayload) {
			if !s.Exists || s.Doc == nil {
				onSnapshot(nil)
				return
			}
			doc, err := wire.ProfileFromDocument(*s.Doc)
			if err != nil {
				onError(fmt.Errorf("decode profile %s: %w", uid, err))
				return
			}
			onSnapshot(&doc)
		},
		onError,
	)
}

func (p *Profiles) MergeWrite(ctx context.Context, uid string, patch wire.ProfileDocument) error {
	in := wire.DocWrite{Collection: usersCollection, ID: uid, Data: patch.Fields()}
	return p.c.post(ctx, "/api/docs/merge", in, nil)
}

// Docs is the collections Store over the document API.
type Docs struct {
	c    *Client
	live *Live
}

func NewDocs(c *Client, live *Live) *Docs {
	return &Docs{c: c, live: live}
}

func (d *Docs) Watch(q wire.Query, onDocs func([]wire.Document), onErr func(error)) func() {
	target := wire.Target{Kind: wire.TargetQuery, Collection: q.Collection, Query: &q}
	return d.live.subscribe(target,
		func(s wire.SnapshotPayload) {
			docs := s.Docs
			if docs == nil {
				docs = []wire.Document{}
			}
			onDocs(docs)
		},
		onErr,
	)
}

func (d *Docs) Get(ctx context.Context, collection, id string) (wire.Document, bool, error) {
	var res wire.DocResult
	if err := d.c.post(ctx, "/api/docs/get", wire.DocRef{Collection: collection, ID: id}, &res); err != nil {
		return wire.Document{}, false, err
	}
	if !res.Exists || res.Doc == nil {
		return wire.Document{}, false, nil
	}
	return *res.Doc, true, nil
}

func (d *Docs) Query(ctx context.Context, q wire.Query) ([]wire.Document, error) {
	var res wire.QueryResult
	if err := d.c.post(ctx, "/api/docs/query", q, &res); err != nil {
		return nil, err
	}
	return res.Docs, nil
}

func (d *Docs) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	var res wire.DocResult
	if err := d.c.post(ctx, "/api/docs/create", wire.DocWrite{Collection: collection, Data: data}, &res); err != nil {
		return "", err
	}
	if res.Doc == nil {
		return "", fmt.Errorf("create in %s: empty response", collection)
	}
	return res.Doc.ID, nil
}

func (d *Docs) Update(ctx context.Context, collection, id string, data map[string]any) error {
	return d.c.post(ctx, "/api/docs/update", wire.DocWrite{Collection: collection, ID: id, Data: data}, nil)
}

func (d *Docs) Delete(ctx context.Context, collection, id string) error {
	return d.c.post(ctx, "/api/docs/delete", wire.DocRef{Collection: collection, ID: id}, nil)
}

func (d *Docs) Batch(ctx context.Context, ops []wire.Op) ([]string, error) {
	var res wire.BatchResult
	if err := d.c.post(ctx, "/api/docs/batch", wire.Batch{Ops: ops}, &res); err != nil {
		return nil, err
	}
	return res.IDs, nil
}

// Blobs uploads through the multipart endpoint.
type Blobs struct {
	c *Client
}

func NewBlobs(c *Client) *Blobs {
	return &Blobs{c: c}
}

func (b *Blobs) Put(ctx context.Context, key string, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("path", key); err != nil {
		return "", err
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, path.Base(key)))
	header.Set("Content-Type", http.DetectContentType(data))
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.c.base+"/api/blobs/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var res wire.BlobResult
	if err := b.c.send(req, &res); err != nil {
		return "", err
	}
	return res.URL, nil
}

func (b *Blobs) Delete(ctx context.Context, key string) error {
	return b.c.post(ctx, "/api/blobs/delete", wire.BlobRef{Path: key}, nil)
}
