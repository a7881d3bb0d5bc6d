/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var errNotStruct = errors.New("input must be a struct or pointer to struct")

// FilterSensitiveFields converts a struct into a map, leaving out fields
// tagged `sensitive:"true"` or `json:"-"`. Use it before a configuration is
// logged or returned to a client.
func FilterSensitiveFields(input interface{}) (map[string]interface{}, error) {
	if input == nil {
		return make(map[string]interface{}), nil
	}

	result := filterRecursively(reflect.ValueOf(input))
	if result == nil {
		return make(map[string]interface{}), nil
	}

	if resultMap, ok := result.(map[string]interface{}); ok {
		return resultMap, nil
	}

	return nil, errNotStruct
}

func filterRecursively(rv reflect.Value) interface{} {
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}

		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		rt := rv.Type()
		result := make(map[string]interface{})

		for i := 0; i < rt.NumField(); i++ {
			field := rt.Field(i)
			if !field.IsExported() || field.Tag.Get("sensitive") == "true" {
				continue
			}

			jsonTag := field.Tag.Get("json")
			if jsonTag == "-" {
				continue
			}

			fieldName := field.Name
			if name, _, _ := strings.Cut(jsonTag, ","); name != "" {
				fieldName = name
			}

			result[fieldName] = filterRecursively(rv.Field(i))
		}

		return result
	case reflect.Slice, reflect.Array:
		result := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			result[i] = filterRecursively(rv.Index(i))
		}

		return result
	case reflect.Map:
		result := make(map[string]interface{})

		for _, key := range rv.MapKeys() {
			if key.Kind() == reflect.String {
				result[key.String()] = filterRecursively(rv.MapIndex(key))
			}
		}

		return result
	case reflect.Invalid:
		return nil
	default:
		return rv.Interface()
	}
}

// ExtractSafeConfigMetadata flattens the non-sensitive top-level fields of a
// configuration into strings, suitable for a startup log record.
func ExtractSafeConfigMetadata(config interface{}) map[string]string {
	metadata := make(map[string]string)

	safeData, err := FilterSensitiveFields(config)
	if err != nil {
		return metadata
	}

	for key, value := range safeData {
		switch v := value.(type) {
		case nil:
		case string:
			if v != "" {
				metadata[key] = v
			}
		case map[string]interface{}:
			if len(v) > 0 {
				metadata[key+"_configured"] = "true"
			}
		case []interface{}:
			if len(v) > 0 {
				metadata[key+"_configured"] = "true"
				metadata[key+"_count"] = fmt.Sprintf("%d", len(v))
			}
		default:
			metadata[key] = fmt.Sprintf("%v", v)
		}
	}

	return metadata
}
