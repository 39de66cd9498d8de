package store

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"github.com/LovationAdmin/astrodart-api/models"
)

// document is the stored shape of a user. Attribute names match the
// existing DynamoDB table so legacy items decode unchanged.
type document struct {
	UserID          string                             `json:"UserId" dynamodbav:"UserId" bson:"_id"`
	FirstName       string                             `json:"FirstName" dynamodbav:"FirstName" bson:"FirstName"`
	LastName        string                             `json:"LastName" dynamodbav:"LastName" bson:"LastName"`
	Password        string                             `json:"Password" dynamodbav:"Password" bson:"Password"`
	TOTPSecret      string                             `json:"TOTPSecret,omitempty" dynamodbav:"TOTPSecret,omitempty" bson:"TOTPSecret,omitempty"`
	TOTPEnabled     bool                               `json:"TOTPEnabled,omitempty" dynamodbav:"TOTPEnabled,omitempty" bson:"TOTPEnabled,omitempty"`
	Checklist       map[string]interface{}             `json:"Checklist" dynamodbav:"Checklist" bson:"Checklist"`
	LinkedItems     map[string]models.Link             `json:"LinkedItems" dynamodbav:"LinkedItems" bson:"LinkedItems"`
	NetworthHistory map[string]models.NetworthSnapshot `json:"NetworthHistory" dynamodbav:"NetworthHistory" bson:"NetworthHistory"`
	MonthlySpending map[string]spendingDoc             `json:"MonthlySpending" dynamodbav:"MonthlySpending" bson:"MonthlySpending"`
}

type spendingDoc struct {
	Date     string               `json:"Date" dynamodbav:"Date" bson:"Date"`
	Spending map[string]amountDoc `json:"Spending" dynamodbav:"Spending" bson:"Spending"`
}

// amountDoc is one spending entry. Older rollups wrote the Overall entry as
// a bare number, so a number decodes as an amount with no category.
type amountDoc struct {
	Amount   float64 `json:"Amount" dynamodbav:"Amount" bson:"Amount"`
	Category string  `json:"Category" dynamodbav:"Category" bson:"Category"`
}

// amountFields has amountDoc's layout without its decode methods.
type amountFields amountDoc

func (a *amountDoc) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*a = amountDoc{Amount: n}
		return nil
	}
	return json.Unmarshal(data, (*amountFields)(a))
}

func (a *amountDoc) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	if n, ok := av.(*types.AttributeValueMemberN); ok {
		amount, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return fmt.Errorf("spending amount %q: %w", n.Value, err)
		}
		*a = amountDoc{Amount: amount}
		return nil
	}
	return attributevalue.Unmarshal(av, (*amountFields)(a))
}

func (a *amountDoc) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Double:
		*a = amountDoc{Amount: raw.Double()}
	case bsontype.Int32:
		*a = amountDoc{Amount: float64(raw.Int32())}
	case bsontype.Int64:
		*a = amountDoc{Amount: float64(raw.Int64())}
	default:
		return raw.Unmarshal((*amountFields)(a))
	}
	return nil
}

func toSpendingDocs(history []models.SpendingSnapshot) map[string]spendingDoc {
	out := make(map[string]spendingDoc, len(history))
	for key, snapshot := range models.Indexed(history) {
		d := spendingDoc{Date: snapshot.Date}
		if snapshot.Spending != nil {
			d.Spending = make(map[string]amountDoc, len(snapshot.Spending))
			for category, amount := range snapshot.Spending {
				d.Spending[category] = amountDoc(amount)
			}
		}
		out[key] = d
	}
	return out
}

// fromSpendingDocs names each entry's category after its key when the
// stored entry carried none.
func fromSpendingDocs(docs map[string]spendingDoc) []models.SpendingSnapshot {
	if docs == nil {
		return nil
	}
	indexed := make(map[string]models.SpendingSnapshot, len(docs))
	for key, d := range docs {
		snapshot := models.SpendingSnapshot{Date: d.Date}
		if d.Spending != nil {
			snapshot.Spending = make(map[string]models.CategoryAmount, len(d.Spending))
			for category, amount := range d.Spending {
				entry := models.CategoryAmount(amount)
				if entry.Category == "" {
					entry.Category = category
				}
				snapshot.Spending[category] = entry
			}
		}
		indexed[key] = snapshot
	}
	return models.FromIndexed(indexed)
}

// toDocument encodes a user. Empty mappings stay empty maps; nil mappings
// encode as null and decode back to nil.
func toDocument(u *models.User) document {
	d := document{
		UserID:      u.UserID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Password:    u.Password,
		TOTPSecret:  u.TOTPSecret,
		TOTPEnabled: u.TOTPEnabled,
		Checklist:   u.Checklist,
		LinkedItems: u.LinkedItems,
	}
	if u.NetworthHistory != nil {
		d.NetworthHistory = models.Indexed(u.NetworthHistory)
	}
	if u.MonthlySpending != nil {
		d.MonthlySpending = toSpendingDocs(u.MonthlySpending)
	}
	return d
}

func fromDocument(d document) models.User {
	return models.User{
		UserID:          d.UserID,
		FirstName:       d.FirstName,
		LastName:        d.LastName,
		Password:        d.Password,
		TOTPSecret:      d.TOTPSecret,
		TOTPEnabled:     d.TOTPEnabled,
		Checklist:       d.Checklist,
		LinkedItems:     d.LinkedItems,
		NetworthHistory: models.FromIndexed(d.NetworthHistory),
		MonthlySpending: fromSpendingDocs(d.MonthlySpending),
	}
}

// encodeField checks that value fits field and converts it to its stored
// shape. Mappings are never written as nil.
func encodeField(field models.Field, value interface{}) (interface{}, error) {
	switch field {
	case models.FieldPassword, models.FieldTOTPSecret:
		v, ok := value.(string)
		if !ok {
			return nil, fieldTypeError(field, value)
		}
		return v, nil
	case models.FieldTOTPEnabled:
		v, ok := value.(bool)
		if !ok {
			return nil, fieldTypeError(field, value)
		}
		return v, nil
	case models.FieldChecklist:
		v, ok := value.(map[string]interface{})
		if !ok {
			return nil, fieldTypeError(field, value)
		}
		if v == nil {
			v = map[string]interface{}{}
		}
		return v, nil
	case models.FieldLinkedItems:
		v, ok := value.(map[string]models.Link)
		if !ok {
			return nil, fieldTypeError(field, value)
		}
		if v == nil {
			v = map[string]models.Link{}
		}
		return v, nil
	case models.FieldNetworthHistory:
		v, ok := value.([]models.NetworthSnapshot)
		if !ok {
			return nil, fieldTypeError(field, value)
		}
		return models.Indexed(v), nil
	case models.FieldMonthlySpending:
		v, ok := value.([]models.SpendingSnapshot)
		if !ok {
			return nil, fieldTypeError(field, value)
		}
		return models.Indexed(v), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
}

func fieldTypeError(field models.Field, value interface{}) error {
	return fmt.Errorf("%w: %s got %T", ErrFieldType, field, value)
}
