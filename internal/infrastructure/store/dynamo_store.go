package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/example/shop-analytics/internal/readmodel"
)

// DynamoStore implements AnalyticsStore on DynamoDB. Counter updates
// use conditional update expressions so a decrement below zero fails
// the condition and degrades to a no-op instead of going negative.
type DynamoStore struct {
	client        *dynamodb.Client
	usersTable    string
	productsTable string
}

// dynamoUser is the DynamoDB item structure for the user projection.
// The action history is stored as a JSON string, matching how the rest
// of the pipeline treats it as an opaque ordered list.
type dynamoUser struct {
	UserID      string `dynamodbav:"user_id"`
	LastVisited string `dynamodbav:"last_visited"`
	Actions     string `dynamodbav:"actions"`
	Country     string `dynamodbav:"country,omitempty"`
	City        string `dynamodbav:"city,omitempty"`
	Device      string `dynamodbav:"device,omitempty"`
}

// dynamoProduct is the DynamoDB item structure for the product counters.
type dynamoProduct struct {
	ProductID    string `dynamodbav:"product_id"`
	ShopID       string `dynamodbav:"shop_id,omitempty"`
	Views        int64  `dynamodbav:"views"`
	CartAdds     int64  `dynamodbav:"cart_adds"`
	WishListAdds int64  `dynamodbav:"wish_list_adds"`
	Purchases    int64  `dynamodbav:"purchases"`
	LastViewedAt string `dynamodbav:"last_viewed_at"`
}

func NewDynamoStore(client *dynamodb.Client, usersTable, productsTable string) *DynamoStore {
	return &DynamoStore{
		client:        client,
		usersTable:    usersTable,
		productsTable: productsTable,
	}
}

func (s *DynamoStore) FindUserActions(ctx context.Context, userID string) ([]readmodel.UserAction, bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.usersTable),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
		// "actions" collides with a reserved word, alias it
		ProjectionExpression:     aws.String("#ac"),
		ExpressionAttributeNames: map[string]string{"#ac": "actions"},
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	if len(result.Item) == 0 {
		return nil, false, nil
	}

	var item struct {
		Actions string `dynamodbav:"actions"`
	}
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal user actions: %w", err)
	}

	var actions []readmodel.UserAction
	if item.Actions != "" {
		if err := json.Unmarshal([]byte(item.Actions), &actions); err != nil {
			return nil, false, fmt.Errorf("failed to decode user actions: %w", err)
		}
	}
	return actions, true, nil
}

func (s *DynamoStore) UpsertUser(ctx context.Context, up UserUpsert) error {
	actions, err := json.Marshal(up.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode user actions: %w", err)
	}

	sets := []string{"#lv = :lv", "#ac = :ac"}
	names := map[string]string{"#lv": "last_visited", "#ac": "actions"}
	values := map[string]types.AttributeValue{
		":lv": &types.AttributeValueMemberS{Value: up.LastVisited.Format(time.RFC3339Nano)},
		":ac": &types.AttributeValueMemberS{Value: string(actions)},
	}
	if up.Country != "" {
		sets = append(sets, "#co = :co")
		names["#co"] = "country"
		values[":co"] = &types.AttributeValueMemberS{Value: up.Country}
	}
	if up.City != "" {
		sets = append(sets, "#ci = :ci")
		names["#ci"] = "city"
		values[":ci"] = &types.AttributeValueMemberS{Value: up.City}
	}
	if up.Device != "" {
		sets = append(sets, "#de = :de")
		names["#de"] = "device"
		values[":de"] = &types.AttributeValueMemberS{Value: up.Device}
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.usersTable),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: up.UserID},
		},
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", up.UserID, err)
	}
	return nil
}

// counterAttrs maps expression aliases to counter attribute names.
var counterAttrs = []struct {
	alias string
	attr  string
}{
	{"#vw", "views"},
	{"#ca", "cart_adds"},
	{"#wa", "wish_list_adds"},
	{"#pu", "purchases"},
}

func (s *DynamoStore) UpsertProductCounters(ctx context.Context, up ProductUpsert) error {
	deltas := map[string]int64{
		"views":          up.ViewsDelta,
		"cart_adds":      up.CartDelta,
		"wish_list_adds": up.WishDelta,
		"purchases":      up.BuyDelta,
	}

	// Apply increments, shop_id capture and the timestamp in one write.
	sets := []string{"#ts = :ts"}
	names := map[string]string{"#ts": "last_viewed_at"}
	values := map[string]types.AttributeValue{
		":ts": &types.AttributeValueMemberS{Value: up.LastViewedAt.Format(time.RFC3339Nano)},
	}
	if up.ShopID != "" {
		sets = append(sets, "#sh = if_not_exists(#sh, :shop)")
		names["#sh"] = "shop_id"
		values[":shop"] = &types.AttributeValueMemberS{Value: up.ShopID}
	}

	var decrements []struct {
		alias string
		attr  string
	}
	needZero := false
	for _, c := range counterAttrs {
		d := deltas[c.attr]
		switch {
		case d > 0:
			ph := ":d" + c.alias[1:]
			sets = append(sets, fmt.Sprintf("%s = if_not_exists(%s, :zero) + %s", c.alias, c.alias, ph))
			names[c.alias] = c.attr
			values[ph] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", d)}
			needZero = true
		case d < 0:
			decrements = append(decrements, c)
		}
	}
	if needZero {
		values[":zero"] = &types.AttributeValueMemberN{Value: "0"}
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.productsTable),
		Key: map[string]types.AttributeValue{
			"product_id": &types.AttributeValueMemberS{Value: up.ProductID},
		},
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", up.ProductID, err)
	}

	// Decrements are guarded by a condition so the counter can never go
	// below zero; a failed condition means the counter was already too
	// small and the decrement degrades to a no-op.
	for _, c := range decrements {
		d := -deltas[c.attr]
		_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: aws.String(s.productsTable),
			Key: map[string]types.AttributeValue{
				"product_id": &types.AttributeValueMemberS{Value: up.ProductID},
			},
			UpdateExpression:         aws.String(fmt.Sprintf("SET %s = %s - :d", c.alias, c.alias)),
			ConditionExpression:      aws.String(fmt.Sprintf("%s >= :d", c.alias)),
			ExpressionAttributeNames: map[string]string{c.alias: c.attr},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":d": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", d)},
			},
		})
		if err != nil {
			var ccf *types.ConditionalCheckFailedException
			if errors.As(err, &ccf) {
				continue
			}
			return fmt.Errorf("failed to decrement %s for product %s: %w", c.attr, up.ProductID, err)
		}
	}
	return nil
}

func (s *DynamoStore) GetUser(ctx context.Context, userID string) (*readmodel.UserAnalytics, bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.usersTable),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	if len(result.Item) == 0 {
		return nil, false, nil
	}

	var item dynamoUser
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	u := &readmodel.UserAnalytics{
		UserID:  item.UserID,
		Country: item.Country,
		City:    item.City,
		Device:  item.Device,
	}
	if item.LastVisited != "" {
		if t, err := time.Parse(time.RFC3339Nano, item.LastVisited); err == nil {
			u.LastVisited = t
		}
	}
	if item.Actions != "" {
		if err := json.Unmarshal([]byte(item.Actions), &u.Actions); err != nil {
			return nil, false, fmt.Errorf("failed to decode user actions: %w", err)
		}
	}
	return u, true, nil
}

func (s *DynamoStore) GetProduct(ctx context.Context, productID string) (*readmodel.ProductAnalytics, bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.productsTable),
		Key: map[string]types.AttributeValue{
			"product_id": &types.AttributeValueMemberS{Value: productID},
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get product %s: %w", productID, err)
	}
	if len(result.Item) == 0 {
		return nil, false, nil
	}

	var item dynamoProduct
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal product: %w", err)
	}

	p := &readmodel.ProductAnalytics{
		ProductID:    item.ProductID,
		ShopID:       item.ShopID,
		Views:        item.Views,
		CartAdds:     item.CartAdds,
		WishListAdds: item.WishListAdds,
		Purchases:    item.Purchases,
	}
	if item.LastViewedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, item.LastViewedAt); err == nil {
			p.LastViewedAt = t
		}
	}
	return p, true, nil
}
