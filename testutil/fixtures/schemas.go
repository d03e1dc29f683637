// =============================================================================
// 📦 测试数据工厂 - Schema 与原始输出
// =============================================================================
// 提供常用的 schema 树与对应的后端原始输出，用于测试
// =============================================================================
package fixtures

import (
	"github.com/BaSui01/guardflow/schema"
	"github.com/BaSui01/guardflow/validator"
)

// =============================================================================
// 🍕 单字段 schema
// =============================================================================

// 两个单词约束的典型输出
const (
	PizzaThreeWords = "Tomato Cheese Pizza"
	PizzaTwoWords   = "Tomato Pizza"
)

// PizzaTree 返回根为字符串、要求恰好两个单词的 schema
func PizzaTree() *schema.Tree {
	return PizzaTreeWithPolicy(validator.OnFailReask)
}

// PizzaTreeWithPolicy 同 PizzaTree，可指定失败策略
func PizzaTreeWithPolicy(onFail validator.OnFail) *schema.Tree {
	root := schema.String("").WithValidator(validator.IDTwoWords, onFail, nil)
	return schema.MustBuild(root, validator.Default())
}

// =============================================================================
// 🧾 对象 schema
// =============================================================================

// OrderTree 返回订单对象 schema：
// name 两个单词、size 枚举、toppings 小写列表、quantity 1..10
func OrderTree() *schema.Tree {
	root := schema.Object("",
		schema.String("name").WithValidator(validator.IDTwoWords, validator.OnFailReask, nil),
		schema.String("size").WithValidator(validator.IDValidChoices, validator.OnFailReask,
			map[string]any{"choices": []any{"small", "medium", "large"}}),
		schema.List("toppings",
			schema.String("").WithValidator(validator.IDLowerCase, validator.OnFailReask, nil)),
		schema.Integer("quantity").WithValidator(validator.IDValidRange, validator.OnFailReask,
			map[string]any{"min": 1, "max": 10}),
	)
	return schema.MustBuild(root, validator.Default())
}

// 订单 schema 的典型输出
const (
	OrderValid = `{"name": "Tomato Pizza", "size": "large", "toppings": ["basil", "olive"], "quantity": 2}`

	// size 与 quantity 不合法，其余字段通过
	OrderBadSizeAndQuantity = `{"name": "Tomato Pizza", "size": "huge", "toppings": ["basil"], "quantity": 20}`

	// 对 OrderBadSizeAndQuantity 的修正，只包含被重问的字段
	OrderSizeAndQuantityPatch = `{"size": "medium", "quantity": 3}`
)

// =============================================================================
// 🔑 元数据 schema
// =============================================================================

// 元数据键
const (
	MetadataKeyStyles   = "pizza_styles"
	MetadataKeyToppings = "allowed_toppings"
)

// MetadataTree 返回两个嵌套校验器分别依赖不同元数据键的 schema
func MetadataTree() *schema.Tree {
	root := schema.Object("",
		schema.Object("order",
			schema.String("style").WithValidator(validator.IDMetadataChoices, validator.OnFailReask,
				map[string]any{"key": MetadataKeyStyles}),
			schema.String("topping").WithValidator(validator.IDMetadataChoices, validator.OnFailReask,
				map[string]any{"key": MetadataKeyToppings}),
		),
	)
	return schema.MustBuild(root, validator.Default())
}

// FullMetadata 返回 MetadataTree 所需的全部元数据
func FullMetadata() map[string]any {
	return map[string]any{
		MetadataKeyStyles:   []any{"neapolitan", "roman"},
		MetadataKeyToppings: []any{"basil", "olive"},
	}
}

// MetadataValid 满足 FullMetadata 的输出
const MetadataValid = `{"order": {"style": "roman", "topping": "basil"}}`
