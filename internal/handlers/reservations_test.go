package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/mock/gomock"

	"storefront/internal/models"
	"storefront/internal/notify"
	"storefront/internal/notify/mocks"
)

func TestValidateSelectedOptions(t *testing.T) {
	options := []models.ProductOption{
		{Name: "Size", Values: []string{"S", "M"}},
		{Name: "Colour", Values: []string{"Red"}},
	}

	out, err := validateSelectedOptions(options, map[string]string{"Size": " M ", "Colour": "Red"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Size": "M", "Colour": "Red"}, out)

	_, err = validateSelectedOptions(options, map[string]string{"Size": "M"})
	assert.ErrorContains(t, err, "Colour must be selected")

	_, err = validateSelectedOptions(options, map[string]string{"Size": "XL", "Colour": "Red"})
	assert.ErrorContains(t, err, "invalid value")

	_, err = validateSelectedOptions(options, map[string]string{"Size": "M", "Colour": "Red", "Wrap": "yes"})
	assert.ErrorContains(t, err, "unknown option")

	out, err = validateSelectedOptions(nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, out)
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const reservationBody = `{
	"customerName": "Ada",
	"customerEmail": "Ada@Example.com",
	"customerPhone": "555-0100",
	"productId": "%s",
	"quantity": 2,
	"selectedOptions": {"Size": "M"}
}`

func productCursor(ns string, id primitive.ObjectID) bson.D {
	return mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
		{Key: "_id", Value: id},
		{Key: "name", Value: "Wool Scarf"},
		{Key: "price", Value: 450.0},
		{Key: "images", Value: bson.A{"/uploads/products/scarf.png"}},
		{Key: "inStock", Value: true},
		{Key: "options", Value: bson.A{bson.D{
			{Key: "name", Value: "Size"},
			{Key: "values", Value: bson.A{"S", "M"}},
		}}},
	})
}

func TestCreateReservation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("sends email and reports notified", func(mt *mtest.T) {
		ctrl := gomock.NewController(mt)
		sender := mocks.NewMockSender(ctrl)
		var sent notify.Message
		sender.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg notify.Message) error {
			sent = msg
			return nil
		})
		notifier := notify.NewNotifier(sender, nil, "orders@example.com", "https://shop.example")

		productID := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			productCursor(mt.DB.Name()+".products", productID),
			mtest.CreateSuccessResponse(),
		)

		r := gin.New()
		r.POST("/reservations", CreateReservation(mt.DB, notifier))
		w := postJSON(r, "/reservations", strings.Replace(reservationBody, "%s", productID.Hex(), 1))

		require.Equal(mt, http.StatusCreated, w.Code, w.Body.String())
		assert.Contains(mt, w.Body.String(), `"status":"pending"`)
		assert.Contains(mt, w.Body.String(), `"notified":true`)
		assert.Equal(mt, []string{"orders@example.com"}, sent.To)
		assert.Contains(mt, sent.HTML, "Wool Scarf")
	})

	mt.Run("email failure keeps the reservation", func(mt *mtest.T) {
		ctrl := gomock.NewController(mt)
		sender := mocks.NewMockSender(ctrl)
		sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("smtp down"))
		notifier := notify.NewNotifier(sender, nil, "orders@example.com", "https://shop.example")

		productID := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			productCursor(mt.DB.Name()+".products", productID),
			mtest.CreateSuccessResponse(),
		)

		r := gin.New()
		r.POST("/reservations", CreateReservation(mt.DB, notifier))
		w := postJSON(r, "/reservations", strings.Replace(reservationBody, "%s", productID.Hex(), 1))

		require.Equal(mt, http.StatusCreated, w.Code, w.Body.String())
		assert.Contains(mt, w.Body.String(), `"notified":false`)
	})

	mt.Run("rejects option outside the product", func(mt *mtest.T) {
		productID := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			productCursor(mt.DB.Name()+".products", productID),
		)

		r := gin.New()
		r.POST("/reservations", CreateReservation(mt.DB, nil))
		body := strings.Replace(reservationBody, "%s", productID.Hex(), 1)
		body = strings.Replace(body, `"Size": "M"`, `"Size": "XXL"`, 1)
		w := postJSON(r, "/reservations", body)

		assert.Equal(mt, http.StatusBadRequest, w.Code)
	})
}

func TestCreateReservationValidatesBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/reservations", CreateReservation(nil, nil))

	w := postJSON(r, "/reservations", `{"customerName":"Ada","customerEmail":"not-an-email","productId":"x","quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation failed")
	assert.Contains(t, w.Body.String(), "customerEmail must be an email address")
}

func TestNotifyReservationProxy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	notifier := notify.NewNotifier(sender, nil, "orders@example.com", "https://shop.example")

	r := gin.New()
	r.POST("/api/notify/reservation", NotifyReservation(notifier))

	payload := `{"productName":"Mug","productPrice":120,"quantity":1,"customerName":"Bo","customerEmail":"bo@example.com"}`

	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)
	w := postJSON(r, "/api/notify/reservation", payload)
	assert.Equal(t, http.StatusOK, w.Code)

	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("api down"))
	w = postJSON(r, "/api/notify/reservation", payload)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = postJSON(r, "/api/notify/reservation", `{"productName":"Mug"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteReservationNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("missing reservation", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}})

		r := gin.New()
		r.DELETE("/admin/api/reservations/:id", DeleteReservation(mt.DB))
		req := httptest.NewRequest(http.MethodDelete, "/admin/api/reservations/"+primitive.NewObjectID().Hex(), nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(mt, http.StatusNotFound, w.Code)
	})
}

func storedReservation(ns string, id primitive.ObjectID, status string) bson.D {
	return mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
		{Key: "_id", Value: id},
		{Key: "customerName", Value: "Ada"},
		{Key: "status", Value: status},
	})
}

func reservationAfterUpdate(id primitive.ObjectID, status string) bson.D {
	return bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: bson.D{
		{Key: "_id", Value: id},
		{Key: "customerName", Value: "Ada"},
		{Key: "status", Value: status},
	}}}
}

func TestUpdateReservationStatusLenientAcceptsAnyStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("every pair", func(mt *mtest.T) {
		r := gin.New()
		r.PUT("/admin/api/reservations/:id/status", UpdateReservationStatus(mt.DB, false))
		ns := mt.DB.Name() + ".reservations"

		for _, from := range models.ReservationStatuses {
			for _, to := range models.ReservationStatuses {
				mt.ClearEvents()
				id := primitive.NewObjectID()
				mt.AddMockResponses(storedReservation(ns, id, from))
				if from != to {
					mt.AddMockResponses(reservationAfterUpdate(id, to))
				}

				w := sendJSON(r, http.MethodPut, "/admin/api/reservations/"+id.Hex()+"/status", `{"status":"`+to+`"}`)
				require.Equal(mt, http.StatusOK, w.Code, "%s -> %s: %s", from, to, w.Body.String())
				assert.Contains(mt, w.Body.String(), `"status":"`+to+`"`)

				writes := commandsNamed(mt, "findAndModify")
				if from == to {
					assert.Empty(mt, writes)
					continue
				}
				require.Len(mt, writes, 1)
				assert.Equal(mt, to, writes[0].Lookup("update", "$set", "status").StringValue())
				_, ok := writes[0].Lookup("update", "$set", "statusUpdatedAt").DateTimeOK()
				assert.True(mt, ok, "statusUpdatedAt is written")
				_, err := writes[0].LookupErr("query", "status")
				assert.Error(mt, err, "lenient writes are not guarded on status")
			}
		}
	})
}

func TestUpdateReservationStatusStrict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("next step is guarded on the read status", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			storedReservation(mt.DB.Name()+".reservations", id, models.StatusPending),
			reservationAfterUpdate(id, models.StatusConfirmed),
		)

		r := gin.New()
		r.PUT("/admin/api/reservations/:id/status", UpdateReservationStatus(mt.DB, true))
		w := sendJSON(r, http.MethodPut, "/admin/api/reservations/"+id.Hex()+"/status", `{"status":"confirmed"}`)
		require.Equal(mt, http.StatusOK, w.Code, w.Body.String())

		writes := commandsNamed(mt, "findAndModify")
		require.Len(mt, writes, 1)
		assert.Equal(mt, models.StatusPending, writes[0].Lookup("query", "status").StringValue())
		assert.Equal(mt, models.StatusConfirmed, writes[0].Lookup("update", "$set", "status").StringValue())
		_, ok := writes[0].Lookup("update", "$set", "statusUpdatedAt").DateTimeOK()
		assert.True(mt, ok)
	})

	mt.Run("skipping a step is rejected", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(storedReservation(mt.DB.Name()+".reservations", id, models.StatusPending))

		r := gin.New()
		r.PUT("/admin/api/reservations/:id/status", UpdateReservationStatus(mt.DB, true))
		w := sendJSON(r, http.MethodPut, "/admin/api/reservations/"+id.Hex()+"/status", `{"status":"shipped"}`)
		assert.Equal(mt, http.StatusConflict, w.Code)
		assert.Empty(mt, commandsNamed(mt, "findAndModify"))
	})

	mt.Run("status changed by someone else", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			storedReservation(mt.DB.Name()+".reservations", id, models.StatusPending),
			bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}},
		)

		r := gin.New()
		r.PUT("/admin/api/reservations/:id/status", UpdateReservationStatus(mt.DB, true))
		w := sendJSON(r, http.MethodPut, "/admin/api/reservations/"+id.Hex()+"/status", `{"status":"confirmed"}`)
		assert.Equal(mt, http.StatusConflict, w.Code)
		assert.Contains(mt, w.Body.String(), "changed concurrently")
	})

	mt.Run("unknown status", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(storedReservation(mt.DB.Name()+".reservations", id, models.StatusPending))

		r := gin.New()
		r.PUT("/admin/api/reservations/:id/status", UpdateReservationStatus(mt.DB, true))
		w := sendJSON(r, http.MethodPut, "/admin/api/reservations/"+id.Hex()+"/status", `{"status":"cancelled"}`)
		assert.Equal(mt, http.StatusBadRequest, w.Code)
	})
}
