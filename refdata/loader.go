// Package refdata loads the static shipping-rule and region tables at startup.
package refdata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	aws_pkg "checkout-service/pkg/aws"
	"checkout-service/models"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-playground/validator/v10"
)

const dynamoScheme = "dynamodb://"

// Loader reads reference data from a local file, s3://bucket/key or dynamodb://table.
// S3 and Dynamo may be nil when those sources are not used.
type Loader struct {
	S3       aws_pkg.ObjectGetter
	Dynamo   aws_pkg.ItemScanner
	validate *validator.Validate
}

func NewLoader(s3 aws_pkg.ObjectGetter, dynamo aws_pkg.ItemScanner) *Loader {
	return &Loader{S3: s3, Dynamo: dynamo, validate: validator.New()}
}

// LoadShippingRules loads and validates the shipping rule table.
func (l *Loader) LoadShippingRules(ctx context.Context, source string) (models.RuleTable, error) {
	var table models.RuleTable

	if strings.HasPrefix(source, dynamoScheme) {
		rules, err := l.scanRules(ctx, strings.TrimPrefix(source, dynamoScheme))
		if err != nil {
			return table, err
		}
		table.Rules = rules
	} else {
		b, err := l.read(ctx, source)
		if err != nil {
			return table, err
		}
		if err := json.Unmarshal(b, &table); err != nil {
			return table, fmt.Errorf("decode shipping rules %s: %w", source, err)
		}
	}

	if err := l.validate.Struct(table); err != nil {
		return table, fmt.Errorf("invalid shipping rules %s: %w", source, err)
	}
	if err := uniqueCountries(table); err != nil {
		return table, fmt.Errorf("invalid shipping rules %s: %w", source, err)
	}
	return table, nil
}

// LoadRegions loads and validates the display region table.
func (l *Loader) LoadRegions(ctx context.Context, source string) (models.RegionTable, error) {
	var table models.RegionTable
	b, err := l.read(ctx, source)
	if err != nil {
		return table, err
	}
	if err := json.Unmarshal(b, &table); err != nil {
		return table, fmt.Errorf("decode regions %s: %w", source, err)
	}
	if err := l.validate.Struct(table); err != nil {
		return table, fmt.Errorf("invalid regions %s: %w", source, err)
	}
	return table, nil
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, error) {
	if source == "" {
		return nil, fmt.Errorf("empty reference data source")
	}
	if strings.HasPrefix(source, "s3://") {
		if l.S3 == nil {
			return nil, fmt.Errorf("source %s needs an s3 client", source)
		}
		bucket, key, err := aws_pkg.ParseS3URI(source)
		if err != nil {
			return nil, err
		}
		return aws_pkg.ReadObject(ctx, l.S3, bucket, key)
	}
	b, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}
	return b, nil
}

// scanRules reads one ShippingRule per item, following pagination.
func (l *Loader) scanRules(ctx context.Context, table string) ([]models.ShippingRule, error) {
	if l.Dynamo == nil {
		return nil, fmt.Errorf("source %s%s needs a dynamodb client", dynamoScheme, table)
	}
	if table == "" {
		return nil, fmt.Errorf("empty dynamodb table name")
	}

	var rules []models.ShippingRule
	var startKey map[string]types.AttributeValue
	for {
		out, err := l.Dynamo.Scan(ctx, &dynamodb.ScanInput{
			TableName:         &table,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb scan %s: %w", table, err)
		}

		var page []models.ShippingRule
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal shipping rules: %w", err)
		}
		rules = append(rules, page...)

		if len(out.LastEvaluatedKey) == 0 {
			return rules, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func uniqueCountries(table models.RuleTable) error {
	seen := make(map[string]bool, len(table.Rules))
	for _, r := range table.Rules {
		key := strings.ToLower(strings.TrimSpace(r.Country))
		if seen[key] {
			return fmt.Errorf("duplicate rule for country %q", r.Country)
		}
		seen[key] = true
	}
	return nil
}
