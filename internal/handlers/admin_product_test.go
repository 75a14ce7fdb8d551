package handlers

import (
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"storefront/internal/models"
	"storefront/internal/storage"
)

type fakeImageStore struct {
	saved   []string
	err     error
	deleted []string
}

func (s *fakeImageStore) SaveAll(_ context.Context, _ []*multipart.FileHeader) ([]string, error) {
	return s.saved, s.err
}

func (s *fakeImageStore) DeleteAll(urls []string) {
	s.deleted = append(s.deleted, urls...)
}

func strPtr(v string) *string     { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestApplyProductInputRequiresNameOnCreate(t *testing.T) {
	p := models.Product{ID: primitive.NewObjectID()}
	_, err := applyProductInput(context.Background(), nil, &p, productInput{}, true)

	var inputErr productInputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "name required", inputErr.msg)
}

func TestApplyProductInputValidatesPricing(t *testing.T) {
	p := models.Product{ID: primitive.NewObjectID()}
	input := productInput{productRequest: productRequest{
		Name:  strPtr("Candle"),
		Price: floatPtr(300),
		MRP:   floatPtr(250),
	}}
	_, err := applyProductInput(context.Background(), nil, &p, input, true)
	assert.ErrorAs(t, err, &productInputError{})

	input.MRP = floatPtr(400)
	set, err := applyProductInput(context.Background(), nil, &p, input, true)
	require.NoError(t, err)
	assert.Equal(t, 300.0, set["price"])
	assert.Equal(t, 400.0, set["mrp"])
	assert.Equal(t, "Candle", p.Name)
}

func TestApplyProductInputRejectsNonFiniteFormPrice(t *testing.T) {
	for _, raw := range []string{"NaN", "Inf", "+Inf", "-Inf"} {
		price, err := strconv.ParseFloat(raw, 64)
		require.NoError(t, err, raw)

		p := models.Product{ID: primitive.NewObjectID()}
		input := productInput{productRequest: productRequest{Name: strPtr("Candle"), Price: &price}}
		_, err = applyProductInput(context.Background(), nil, &p, input, true)
		assert.ErrorAs(t, err, &productInputError{}, raw)
		assert.Zero(t, p.Price, raw)
	}
}

func TestApplyProductInputUpdateOnlyTouchesSentFields(t *testing.T) {
	p := models.Product{ID: primitive.NewObjectID(), Name: "Old", Price: 10}
	bestseller := true
	set, err := applyProductInput(context.Background(), nil, &p, productInput{productRequest: productRequest{Bestseller: &bestseller}}, false)
	require.NoError(t, err)
	assert.Len(t, set, 1)
	assert.Equal(t, true, set["bestseller"])
	assert.Equal(t, "Old", p.Name)
}

func TestResolveImagesRemovesPartialUploadsOnFailure(t *testing.T) {
	store := &fakeImageStore{
		saved: []string{"/uploads/products/ok.png"},
		err:   storage.InvalidImageError{Filename: "bad.gif", Reason: "unsupported type .gif"},
	}
	cfg := CatalogConfig{Store: store, MaxImages: 8}
	input := productInput{Files: []*multipart.FileHeader{{Filename: "ok.png"}, {Filename: "bad.gif"}}}

	_, _, err := resolveImages(context.Background(), cfg, nil, input)
	assert.ErrorAs(t, err, &productInputError{})
	assert.Equal(t, []string{"/uploads/products/ok.png"}, store.deleted)
}

func TestResolveImagesKeepsAndAppends(t *testing.T) {
	store := &fakeImageStore{saved: []string{"/uploads/products/new.png"}}
	cfg := CatalogConfig{Store: store, MaxImages: 3}
	keep := []string{"/uploads/products/a.png", " ", "/uploads/products/a.png"}
	input := productInput{
		productRequest: productRequest{Images: &keep},
		Files:          []*multipart.FileHeader{{Filename: "new.png"}},
	}

	images, uploaded, err := resolveImages(context.Background(), cfg, []string{"/uploads/products/old.png"}, input)
	require.NoError(t, err)
	assert.Equal(t, []string{"/uploads/products/a.png", "/uploads/products/new.png"}, images)
	assert.Equal(t, []string{"/uploads/products/new.png"}, uploaded)
}

func TestResolveImagesEnforcesLimit(t *testing.T) {
	cfg := CatalogConfig{Store: &fakeImageStore{}, MaxImages: 1}
	input := productInput{Files: []*multipart.FileHeader{{Filename: "a.png"}, {Filename: "b.png"}}}

	_, _, err := resolveImages(context.Background(), cfg, nil, input)
	assert.ErrorAs(t, err, &productInputError{})
}

var writeAck = bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}, {Key: "nModified", Value: 1}}

func storedProduct(ns string, fields ...bson.E) bson.D {
	return mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, append(bson.D{
		{Key: "name", Value: "Candle"},
		{Key: "price", Value: 300.0},
		{Key: "inStock", Value: true},
	}, fields...))
}

func TestCreateProductLinksRelatedBothWays(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("related product lists the new one", func(mt *mtest.T) {
		ns := mt.DB.Name() + ".products"
		other := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "_id", Value: other}}),
			mtest.CreateSuccessResponse(),
			writeAck,
		)

		r := gin.New()
		r.POST("/admin/api/products", CreateProduct(mt.DB, CatalogConfig{Store: &fakeImageStore{}}))
		r.GET("/products/:id", GetProduct(mt.DB))

		w := postJSON(r, "/admin/api/products", `{"name":"Candle","price":300,"relatedProducts":["`+other.Hex()+`"]}`)
		require.Equal(mt, http.StatusCreated, w.Code, w.Body.String())

		var created struct {
			ID primitive.ObjectID `json:"id"`
		}
		require.NoError(mt, json.Unmarshal(w.Body.Bytes(), &created))

		inserts := commandsNamed(mt, "insert")
		require.Len(mt, inserts, 1)
		assert.Equal(mt, other, inserts[0].Lookup("documents", "0", "relatedProducts", "0").ObjectID())

		updates := commandsNamed(mt, "update")
		require.Len(mt, updates, 1)
		assert.Equal(mt, other, updates[0].Lookup("updates", "0", "q", "_id").ObjectID())
		linked := updates[0].Lookup("updates", "0", "u", "$addToSet", "relatedProducts").ObjectID()
		assert.Equal(mt, created.ID, linked)

		// Serve the other product as the link left it.
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			storedProduct(ns, bson.E{Key: "_id", Value: other}, bson.E{Key: "relatedProducts", Value: bson.A{linked}}),
			mtest.CreateCursorResponse(0, mt.DB.Name()+".ratings", mtest.FirstBatch),
			storedProduct(ns, bson.E{Key: "_id", Value: created.ID}),
		)

		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/"+other.Hex(), nil))
		require.Equal(mt, http.StatusOK, w.Code, w.Body.String())

		var detail struct {
			Related []models.RelatedProduct `json:"related"`
		}
		require.NoError(mt, json.Unmarshal(w.Body.Bytes(), &detail))
		require.Len(mt, detail.Related, 1)
		assert.Equal(mt, created.ID, detail.Related[0].ID)
		assert.Equal(mt, "Candle", detail.Related[0].Name)
	})
}

func TestUpdateProductSyncsRelatedOnlyWhenSent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("other fields leave links alone", func(mt *mtest.T) {
		id, linked := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(
			storedProduct(mt.DB.Name()+".products", bson.E{Key: "_id", Value: id}, bson.E{Key: "relatedProducts", Value: bson.A{linked}}),
			writeAck,
		)

		r := gin.New()
		r.PUT("/admin/api/products/:id", UpdateProduct(mt.DB, CatalogConfig{Store: &fakeImageStore{}}))
		w := sendJSON(r, http.MethodPut, "/admin/api/products/"+id.Hex(), `{"name":"Beeswax Candle"}`)
		require.Equal(mt, http.StatusOK, w.Code, w.Body.String())

		updates := commandsNamed(mt, "update")
		require.Len(mt, updates, 1)
		assert.Equal(mt, id, updates[0].Lookup("updates", "0", "q", "_id").ObjectID())
		assert.Equal(mt, "Beeswax Candle", updates[0].Lookup("updates", "0", "u", "$set", "name").StringValue())
		_, err := updates[0].LookupErr("updates", "0", "u", "$set", "relatedProducts")
		assert.Error(mt, err)
	})

	mt.Run("replaced list links and unlinks", func(mt *mtest.T) {
		ns := mt.DB.Name() + ".products"
		id, dropped, added := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(
			storedProduct(ns, bson.E{Key: "_id", Value: id}, bson.E{Key: "relatedProducts", Value: bson.A{dropped}}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "_id", Value: added}}),
			writeAck,
			writeAck,
			writeAck,
		)

		r := gin.New()
		r.PUT("/admin/api/products/:id", UpdateProduct(mt.DB, CatalogConfig{Store: &fakeImageStore{}}))
		w := sendJSON(r, http.MethodPut, "/admin/api/products/"+id.Hex(), `{"relatedProducts":["`+added.Hex()+`"]}`)
		require.Equal(mt, http.StatusOK, w.Code, w.Body.String())

		updates := commandsNamed(mt, "update")
		require.Len(mt, updates, 3)
		assert.Equal(mt, added, updates[0].Lookup("updates", "0", "u", "$set", "relatedProducts", "0").ObjectID())

		assert.Equal(mt, added, updates[1].Lookup("updates", "0", "q", "_id").ObjectID())
		assert.Equal(mt, id, updates[1].Lookup("updates", "0", "u", "$addToSet", "relatedProducts").ObjectID())

		assert.Equal(mt, dropped, updates[2].Lookup("updates", "0", "q", "_id").ObjectID())
		assert.Equal(mt, id, updates[2].Lookup("updates", "0", "u", "$pull", "relatedProducts").ObjectID())
	})
}

func TestDeleteProductUnlinksAndDropsRatings(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("delete", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			storedProduct(mt.DB.Name()+".products",
				bson.E{Key: "_id", Value: id},
				bson.E{Key: "images", Value: bson.A{"/uploads/products/candle.png"}},
			),
			bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}},
			bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 2}, {Key: "nModified", Value: 2}},
			bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 3}},
		)

		store := &fakeImageStore{}
		r := gin.New()
		r.DELETE("/admin/api/products/:id", DeleteProduct(mt.DB, CatalogConfig{Store: store}))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/api/products/"+id.Hex(), nil))
		require.Equal(mt, http.StatusNoContent, w.Code, w.Body.String())

		deletes := commandsNamed(mt, "delete")
		require.Len(mt, deletes, 2)
		assert.Equal(mt, "products", deletes[0].Lookup("delete").StringValue())
		assert.Equal(mt, id, deletes[0].Lookup("deletes", "0", "q", "_id").ObjectID())
		assert.Equal(mt, "ratings", deletes[1].Lookup("delete").StringValue())
		assert.Equal(mt, id, deletes[1].Lookup("deletes", "0", "q", "productId").ObjectID())

		updates := commandsNamed(mt, "update")
		require.Len(mt, updates, 1)
		assert.Equal(mt, id, updates[0].Lookup("updates", "0", "q", "relatedProducts").ObjectID())
		assert.Equal(mt, id, updates[0].Lookup("updates", "0", "u", "$pull", "relatedProducts").ObjectID())
		assert.True(mt, updates[0].Lookup("updates", "0", "multi").Boolean())

		assert.Equal(mt, []string{"/uploads/products/candle.png"}, store.deleted)
	})
}
