// Copyright 2025 Alibaba Group Holding Ltd.
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

package v1alpha1

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Object is implemented by every schema of this package.
type Object interface {
	WarehouseOrder | RobotConfiguration | RobotRequest | Mission | Robot
}

// Decode converts an unstructured resource into its typed schema and validates it.
func Decode[T Object](obj *unstructured.Unstructured) (*T, error) {
	if obj == nil {
		return nil, fmt.Errorf("nil object")
	}
	out := new(T)
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.UnstructuredContent(), out); err != nil {
		return nil, fmt.Errorf("failed to decode %s %q: %w", obj.GetKind(), obj.GetName(), err)
	}
	if err := validate.Struct(out); err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", obj.GetKind(), obj.GetName(), err)
	}
	return out, nil
}

// Encode converts a pointer to a spec or status value into its unstructured form.
func Encode(v interface{}) (map[string]interface{}, error) {
	return runtime.DefaultUnstructuredConverter.ToUnstructured(v)
}

func toLowerName(s string) string {
	return strings.ToLower(s)
}
